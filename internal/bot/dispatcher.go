package bot

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nkotelnikov/telesweep/internal/errs"
	"github.com/nkotelnikov/telesweep/internal/gateway"
	"github.com/nkotelnikov/telesweep/internal/metrics"
	"github.com/nkotelnikov/telesweep/internal/prompt"
)

// Command is one registered slash command.
type Command struct {
	Name    string // with leading slash, e.g. "/erase"
	About   string
	Handler func(ctx context.Context, msg gateway.InboundMessage)
}

// CallbackHandler handles one decoded button press.
type CallbackHandler func(ctx context.Context, cb gateway.CallbackEvent, page int)

type callbackRoute struct {
	handler CallbackHandler
	locked  bool // takes the per-user workflow lock like a command
}

// Dispatcher routes inbound updates: prompt replies to the waiting prompt,
// commands and workflow buttons to their handlers under a per-user lock, and
// navigation buttons straight through. Routing tables are plain registration
// lists built at startup.
type Dispatcher struct {
	bot     Messenger
	prompts Prompter
	logger  *zap.Logger
	metrics *metrics.Collector

	commands  map[string]Command
	order     []string
	callbacks map[CallbackKind]callbackRoute

	mu       sync.Mutex
	inflight map[int64]bool
}

// NewDispatcher constructs an empty dispatcher; register handlers before Start.
func NewDispatcher(bot Messenger, prompts Prompter, logger *zap.Logger, collector *metrics.Collector) *Dispatcher {
	return &Dispatcher{
		bot:       bot,
		prompts:   prompts,
		logger:    logger,
		metrics:   collector,
		commands:  make(map[string]Command),
		callbacks: make(map[CallbackKind]callbackRoute),
		inflight:  make(map[int64]bool),
	}
}

// Register adds a slash command.
func (d *Dispatcher) Register(cmd Command) {
	d.commands[cmd.Name] = cmd
	d.order = append(d.order, cmd.Name)
}

// RegisterCallback adds a button route. locked routes start workflows and are
// mutually exclusive per user; unlocked routes (pagination) always run.
func (d *Dispatcher) RegisterCallback(kind CallbackKind, locked bool, h CallbackHandler) {
	d.callbacks[kind] = callbackRoute{handler: h, locked: locked}
}

// Handle consumes one update. Each update runs on its own goroutine so a
// handler blocked on a prompt never stalls reply delivery.
func (d *Dispatcher) Handle(ctx context.Context, up gateway.Update) {
	go d.dispatch(ctx, up)
}

func (d *Dispatcher) dispatch(ctx context.Context, up gateway.Update) {
	switch {
	case up.Callback != nil:
		d.dispatchCallback(ctx, *up.Callback)
	case up.Message != nil:
		d.dispatchMessage(ctx, *up.Message)
	}
}

func (d *Dispatcher) dispatchMessage(ctx context.Context, msg gateway.InboundMessage) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	// A pending prompt owns the user's next text, whatever it looks like.
	if d.prompts.Deliver(userID, text) {
		return
	}
	if !strings.HasPrefix(text, "/") {
		return
	}

	name := strings.Fields(text)[0]
	cmd, ok := d.commands[name]
	if !ok {
		_, _ = d.bot.SendMessage(ctx, msg.Chat.ID, "Unknown command. See /help.")
		return
	}

	if !d.tryLock(userID) {
		_, _ = d.bot.SendMessage(ctx, msg.Chat.ID, "Another operation is already in progress. Finish it first.")
		return
	}
	defer d.unlock(userID)

	d.logger.Info("command", zap.String("name", name), zap.Int64("user_id", userID))
	cmd.Handler(ctx, msg)
}

func (d *Dispatcher) dispatchCallback(ctx context.Context, cb gateway.CallbackEvent) {
	// Acknowledge first so the client drops its spinner even on bad payloads.
	if err := d.bot.AnswerCallback(ctx, cb.ID); err != nil {
		d.logger.Warn("answerCallback failed", zap.Error(err))
		d.metrics.RecordGatewayError("bot")
	}
	if cb.From == nil {
		return
	}

	kind, page, err := DecodeCallback(cb.Data)
	if err != nil {
		d.logger.Warn("undecodable callback", zap.String("data", cb.Data), zap.Int64("user_id", cb.From.ID))
		return
	}
	route, ok := d.callbacks[kind]
	if !ok {
		d.logger.Warn("unrouted callback", zap.String("kind", string(kind)))
		return
	}

	if route.locked {
		if !d.tryLock(cb.From.ID) {
			_, _ = d.bot.SendMessage(ctx, cb.ChatID, "Another operation is already in progress. Finish it first.")
			return
		}
		defer d.unlock(cb.From.ID)
	}
	route.handler(ctx, cb, page)
}

func (d *Dispatcher) tryLock(userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inflight[userID] {
		return false
	}
	d.inflight[userID] = true
	return true
}

func (d *Dispatcher) unlock(userID int64) {
	d.mu.Lock()
	delete(d.inflight, userID)
	d.mu.Unlock()
}

// notifyWorkflowError renders a terminal workflow error for the user. Prompt
// timeouts stay silent; everything else becomes one plain-language message.
func notifyWorkflowError(ctx context.Context, bot Messenger, logger *zap.Logger, chatID int64, err error) {
	var abandoned *prompt.AbandonedError
	switch {
	case errors.As(err, &abandoned):
		if abandoned.Timeout {
			return
		}
		_, _ = bot.SendMessage(ctx, chatID, "Cancelled: "+abandoned.LastMessage)
	case errors.Is(err, errs.ErrInvalidPassphrase):
		_, _ = bot.SendMessage(ctx, chatID, "Invalid passphrase. Nothing was deleted.")
	case errors.Is(err, errs.ErrDecryptFailed):
		_, _ = bot.SendMessage(ctx, chatID, "Stored session data could not be decrypted. Delete the session via /session and create a new one.")
	case errors.Is(err, errs.ErrAuthExpired):
		_, _ = bot.SendMessage(ctx, chatID, "Your delegated session is no longer authorized. Re-authorize it via /session.")
	case errors.Is(err, errs.ErrStoreUnavailable):
		_, _ = bot.SendMessage(ctx, chatID, "Temporary storage failure, nothing was changed. Try again later.")
	case errors.Is(err, errs.ErrConflictingParams):
		_, _ = bot.SendMessage(ctx, chatID, "You can't combine an explicit peer list with bulk erasure. Pick one.")
	case errors.Is(err, errs.ErrEntityNotFound):
		_, _ = bot.SendMessage(ctx, chatID, "Error: "+err.Error()+". Nothing was deleted.")
	case errors.Is(err, context.Canceled):
		// shutdown, stay quiet
	default:
		logger.Error("workflow failed", zap.Int64("user_id", chatID), zap.Error(err))
		_, _ = bot.SendMessage(ctx, chatID, "Something went wrong. Try again later.")
	}
}
