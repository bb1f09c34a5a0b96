package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Handler consumes one inbound update. It must not block the poll loop;
// the dispatcher fans updates out to goroutines.
type Handler func(ctx context.Context, up Update)

// BotClient talks to the bot-scoped API via long-polling.
type BotClient struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	offset  int64
	done    chan struct{}
}

// NewBotClient creates a bot-plane client.
func NewBotClient(baseURL, token string, logger *zap.Logger) *BotClient {
	return &BotClient{
		token:   token,
		baseURL: baseURL,
		logger:  logger,
		client:  &http.Client{Timeout: 60 * time.Second},
		done:    make(chan struct{}),
	}
}

// Start begins long-polling for updates. Non-blocking (polls in a goroutine).
func (b *BotClient) Start(ctx context.Context, handler Handler) {
	go b.pollLoop(ctx, handler)
	b.logger.Info("bot poll loop started")
}

// Stop signals the polling loop to stop.
func (b *BotClient) Stop() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}

func (b *BotClient) pollLoop(ctx context.Context, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		default:
			updates, err := b.getUpdates(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				b.logger.Warn("getUpdates failed", zap.Error(err))
				time.Sleep(5 * time.Second)
				continue
			}
			for _, u := range updates {
				if u.UpdateID >= b.offset {
					b.offset = u.UpdateID + 1
				}
				handler(ctx, u)
			}
		}
	}
}

// SendMessage sends a plain text message and returns the new message id.
func (b *BotClient) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	return b.send(ctx, sendRequest{ChatID: chatID, Text: text})
}

// SendKeyboard sends a text message with an inline keyboard attached.
func (b *BotClient) SendKeyboard(ctx context.Context, chatID int64, text string, kb Keyboard) (int64, error) {
	return b.send(ctx, sendRequest{ChatID: chatID, Text: text, Keyboard: kb})
}

func (b *BotClient) send(ctx context.Context, req sendRequest) (int64, error) {
	var resp sendResponse
	if err := b.post(ctx, "sendMessage", req, &resp); err != nil {
		return 0, err
	}
	if !resp.OK {
		return 0, fmt.Errorf("sendMessage returned ok=false")
	}
	return resp.Result.MessageID, nil
}

// EditMessage redraws a previously sent message in place, replacing text and keyboard.
func (b *BotClient) EditMessage(ctx context.Context, chatID, messageID int64, text string, kb Keyboard) error {
	var resp okResponse
	if err := b.post(ctx, "editMessage", editRequest{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb}, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("editMessage returned ok=false")
	}
	return nil
}

// AnswerCallback acknowledges a button press so the client stops its spinner.
func (b *BotClient) AnswerCallback(ctx context.Context, callbackID string) error {
	var resp okResponse
	if err := b.post(ctx, "answerCallback", answerCallbackRequest{CallbackID: callbackID}, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("answerCallback returned ok=false")
	}
	return nil
}

func (b *BotClient) getUpdates(ctx context.Context) ([]Update, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=30", b.baseURL, b.token, b.offset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway error %d: %s", resp.StatusCode, string(body))
	}

	var result updateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("getUpdates returned ok=false")
	}
	return result.Result, nil
}

func (b *BotClient) post(ctx context.Context, method string, in, out any) error {
	url := fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, method)

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway %s error %d: %s", method, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
