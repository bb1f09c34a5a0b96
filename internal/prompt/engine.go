// Package prompt implements a per-user ask/reply primitive over the bot plane:
// send one question, wait for exactly one reply, validate it, retry up to a
// bound, or abandon.
package prompt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nkotelnikov/telesweep/internal/errs"
	"github.com/nkotelnikov/telesweep/internal/metrics"
)

// maxAttempts bounds re-prompts after invalid replies.
const maxAttempts = 3

// Decision is a validator's verdict on one reply.
type Decision int

const (
	Accept Decision = iota // reply is valid, resolve the prompt
	Retry                  // reply invalid, re-prompt with the message
	Abort                  // unrecoverable, abandon immediately
)

// Validator checks one reply. The message accompanies Retry and Abort and is
// shown to the user.
type Validator func(input string) (Decision, string)

// AbandonedError reports why a prompt ended without a valid reply. Timeouts are
// silent cancellations; retry exhaustion carries the last validation message.
type AbandonedError struct {
	Timeout     bool
	LastMessage string
}

func (e *AbandonedError) Error() string {
	if e.Timeout {
		return "prompt abandoned: reply timeout"
	}
	return fmt.Sprintf("prompt abandoned: %s", e.LastMessage)
}

func (e *AbandonedError) Unwrap() error { return errs.ErrPromptAbandoned }

// Sender is the outbound half of the bot plane the engine needs.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
}

// Engine routes free-text replies to at most one outstanding prompt per user.
type Engine struct {
	sender  Sender
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Collector

	mu      sync.Mutex
	waiting map[int64]chan string
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithMetrics records prompt outcomes on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = collector }
}

// New constructs an Engine. timeout applies to each awaited reply.
func New(sender Sender, timeout time.Duration, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		sender:  sender,
		timeout: timeout,
		logger:  logger,
		waiting: make(map[int64]chan string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) observe(outcome string) {
	if e.metrics != nil {
		e.metrics.RecordPromptOutcome(outcome)
	}
}

// Deliver hands an inbound text to the user's outstanding prompt. It reports
// whether the text was consumed; unconsumed texts belong to command dispatch.
func (e *Engine) Deliver(userID int64, text string) bool {
	e.mu.Lock()
	ch, ok := e.waiting[userID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- text:
		return true
	default:
		// Reply already in flight for this attempt; drop extras.
		return true
	}
}

// Waiting reports whether userID has an outstanding prompt.
func (e *Engine) Waiting(userID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.waiting[userID]
	return ok
}

// Ask sends promptText to the user and suspends until a valid reply, retry
// exhaustion, timeout, or context cancellation. With a nil validator any reply
// is accepted. The workflow is strictly sequential per user: a second prompt
// while one is outstanding fails immediately.
func (e *Engine) Ask(ctx context.Context, userID int64, promptText string, validate Validator) (string, error) {
	ch, err := e.register(userID)
	if err != nil {
		return "", err
	}
	defer e.unregister(userID)

	if _, err := e.sender.SendMessage(ctx, userID, promptText); err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	return e.await(ctx, userID, ch, validate)
}

// Await is Ask without the initial question: the caller has already rendered
// the prompt (e.g. a paged keyboard message) and only needs the reply routed,
// validated, and bounded. Re-prompts on invalid replies are still sent.
func (e *Engine) Await(ctx context.Context, userID int64, validate Validator) (string, error) {
	ch, err := e.register(userID)
	if err != nil {
		return "", err
	}
	defer e.unregister(userID)

	return e.await(ctx, userID, ch, validate)
}

func (e *Engine) register(userID int64) (chan string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.waiting[userID]; exists {
		return nil, fmt.Errorf("prompt already outstanding for user %d", userID)
	}
	ch := make(chan string, 1)
	e.waiting[userID] = ch
	return ch, nil
}

func (e *Engine) unregister(userID int64) {
	e.mu.Lock()
	delete(e.waiting, userID)
	e.mu.Unlock()
}

func (e *Engine) await(ctx context.Context, userID int64, ch chan string, validate Validator) (string, error) {
	lastMessage := ""
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		timer := time.NewTimer(e.timeout)
		select {
		case reply := <-ch:
			timer.Stop()
			if validate == nil {
				e.observe("accepted")
				return reply, nil
			}
			decision, msg := validate(reply)
			switch decision {
			case Accept:
				e.observe("accepted")
				return reply, nil
			case Abort:
				e.observe("exhausted")
				return "", &AbandonedError{LastMessage: msg}
			default:
				lastMessage = msg
				if attempt < maxAttempts {
					if _, err := e.sender.SendMessage(ctx, userID, msg); err != nil {
						return "", fmt.Errorf("send prompt: %w", err)
					}
				}
			}
		case <-timer.C:
			e.logger.Info("prompt timed out", zap.Int64("user_id", userID))
			e.observe("timeout")
			return "", &AbandonedError{Timeout: true}
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		}
	}
	e.observe("exhausted")
	return "", &AbandonedError{LastMessage: lastMessage}
}
