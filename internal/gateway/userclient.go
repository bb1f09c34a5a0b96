package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nkotelnikov/telesweep/internal/errs"
	"github.com/nkotelnikov/telesweep/internal/model"
)

// deleteBatchSize bounds one deletion call; the service caps selections at 100.
const deleteBatchSize = 100

// Authorize exchanges a one-time authorization code (issued to the user in the
// official client) for a delegated session token.
func Authorize(ctx context.Context, baseURL, code string, hc *http.Client) (Grant, error) {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	payload, err := json.Marshal(authorizeRequest{Code: code})
	if err != nil {
		return Grant{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/session/authorize", bytes.NewReader(payload))
	if err != nil {
		return Grant{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return Grant{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return Grant{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Grant{}, errs.ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return Grant{}, fmt.Errorf("gateway authorize error %d: %s", resp.StatusCode, string(body))
	}

	var out authorizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Grant{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if !out.OK || out.Result.Session == "" {
		return Grant{}, fmt.Errorf("authorize returned ok=%v", out.OK)
	}
	return out.Result, nil
}

// UserClient performs session-scoped calls with a decrypted session token.
// Close is safe to call more than once and must run on every exit path of the
// workflow that opened the client.
type UserClient struct {
	baseURL string
	session string
	client  *http.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	retries uint64

	closeOnce sync.Once
}

// UserClientOption configures a UserClient.
type UserClientOption func(*UserClient)

// WithConnectRetries sets how many times Connect retries transient failures.
func WithConnectRetries(n uint64) UserClientOption {
	return func(c *UserClient) { c.retries = n }
}

// WithDeleteRate throttles outbound deletion calls.
func WithDeleteRate(r rate.Limit, burst int) UserClientOption {
	return func(c *UserClient) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) UserClientOption {
	return func(c *UserClient) { c.client = hc }
}

// NewUserClient creates a session-plane client from a decrypted session token.
func NewUserClient(baseURL, session string, logger *zap.Logger, opts ...UserClientOption) *UserClient {
	c := &UserClient{
		baseURL: baseURL,
		session: session,
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		retries: 5,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect verifies the session is still authorized and returns its identity.
// Transient failures are retried with exponential backoff; a rejection by the
// service surfaces as errs.ErrAuthExpired without further retries.
func (c *UserClient) Connect(ctx context.Context) (Account, error) {
	var acc Account
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var resp meResponse
		if err := c.do(ctx, http.MethodGet, "/session/me", nil, &resp); err != nil {
			if errors.Is(err, errs.ErrAuthExpired) {
				return err
			}
			return retry.RetryableError(err)
		}
		acc = resp.Result
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	c.logger.Info("delegated session connected", zap.Int64("account_id", acc.ID))
	return acc, nil
}

// Dialogs returns a snapshot of the session user's conversations.
func (c *UserClient) Dialogs(ctx context.Context) ([]model.Conversation, error) {
	var resp dialogsResponse
	if err := c.do(ctx, http.MethodGet, "/session/dialogs", nil, &resp); err != nil {
		return nil, err
	}
	refs := make([]model.Conversation, 0, len(resp.Result))
	for _, d := range resp.Result {
		kind, err := model.ParseKind(d.Kind)
		if err != nil {
			c.logger.Warn("skipping dialog with unknown kind", zap.Int64("id", d.ID), zap.String("kind", d.Kind))
			continue
		}
		refs = append(refs, model.Conversation{ID: d.ID, Title: d.Title, Kind: kind})
	}
	return refs, nil
}

// OwnMessages returns ids of all messages the session user authored in the
// conversation, walking the service's pagination to the end.
func (c *UserClient) OwnMessages(ctx context.Context, convID int64) ([]int64, error) {
	var ids []int64
	var offset int64
	for {
		var resp messagesResponse
		path := fmt.Sprintf("/session/conversations/%d/messages?mine=1&offset=%d", convID, offset)
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		ids = append(ids, resp.Result.IDs...)
		if resp.Result.NextOffset == 0 {
			return ids, nil
		}
		offset = resp.Result.NextOffset
	}
}

// DeleteMessages deletes the given message ids from a conversation in rate-limited
// batches and returns how many the service actually removed. The shortfall against
// len(ids) is expected for service messages.
func (c *UserClient) DeleteMessages(ctx context.Context, convID int64, ids []int64) (int, error) {
	deleted := 0
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))
		if err := c.limiter.Wait(ctx); err != nil {
			return deleted, err
		}
		var resp deleteResponse
		path := fmt.Sprintf("/session/conversations/%d/messages/delete", convID)
		if err := c.do(ctx, http.MethodPost, path, deleteMessagesRequest{IDs: ids[start:end]}, &resp); err != nil {
			return deleted, err
		}
		deleted += resp.Result.Deleted
	}
	return deleted, nil
}

// DeleteHistory wipes the entire one-to-one history with a peer and returns the
// number of messages removed.
func (c *UserClient) DeleteHistory(ctx context.Context, peerID int64) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	var resp deleteResponse
	path := fmt.Sprintf("/session/conversations/%d/history/delete", peerID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Deleted, nil
}

// Logout invalidates the session on the service side.
func (c *UserClient) Logout(ctx context.Context) error {
	var resp okResponse
	return c.do(ctx, http.MethodPost, "/session/logout", nil, &resp)
}

// Close releases the client. Idempotent.
func (c *UserClient) Close() {
	c.closeOnce.Do(func() {
		c.client.CloseIdleConnections()
		c.logger.Info("delegated session closed")
	})
}

func (c *UserClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Session "+c.session)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errs.ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway %s error %d: %s", path, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
