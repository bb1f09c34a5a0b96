package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nkotelnikov/telesweep/internal/errs"
	"github.com/nkotelnikov/telesweep/internal/gateway"
	"github.com/nkotelnikov/telesweep/internal/model"
	"github.com/nkotelnikov/telesweep/internal/service"
)

// SessionHandler implements the /session command and its button workflows:
// create, change passphrase, revoke, delete.
type SessionHandler struct {
	bot     Messenger
	prompts Prompter
	creds   service.CredentialService
	opener  SessionOpener
	logger  *zap.Logger
}

// NewSessionHandler constructs the handler with its collaborators.
func NewSessionHandler(bot Messenger, prompts Prompter, creds service.CredentialService, opener SessionOpener, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{bot: bot, prompts: prompts, creds: creds, opener: opener, logger: logger}
}

// Command returns the /session registration entry.
func (h *SessionHandler) Command() Command {
	return Command{
		Name:    "/session",
		About:   "Create and manage your delegated session",
		Handler: h.handleCommand,
	}
}

// RegisterCallbacks attaches the session buttons to the dispatcher.
func (h *SessionHandler) RegisterCallbacks(d *Dispatcher) {
	d.RegisterCallback(CbSessionCreate, true, h.handleCreate)
	d.RegisterCallback(CbSessionChange, true, h.handleChange)
	d.RegisterCallback(CbSessionRevoke, true, h.handleRevoke)
	d.RegisterCallback(CbSessionDelete, true, h.handleDelete)
}

func (h *SessionHandler) handleCommand(ctx context.Context, msg gateway.InboundMessage) {
	userID := msg.From.ID
	rec, err := h.getRecord(ctx, userID)
	if err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, msg.Chat.ID, err)
		return
	}

	if rec == nil {
		kb := gateway.Keyboard{{{Text: "Create session", Data: EncodeCallback(CbSessionCreate, 0)}}}
		_, _ = h.bot.SendKeyboard(ctx, msg.Chat.ID, "You don't have a session yet. Please create one.", kb)
		return
	}
	kb := gateway.Keyboard{
		{{Text: "Change passphrase", Data: EncodeCallback(CbSessionChange, 0)}},
		{{Text: "Revoke session", Data: EncodeCallback(CbSessionRevoke, 0)}},
		{{Text: "Delete session", Data: EncodeCallback(CbSessionDelete, 0)}},
	}
	_, _ = h.bot.SendKeyboard(ctx, msg.Chat.ID, fmt.Sprintf("You already have a %q session.", rec.Label), kb)
}

func (h *SessionHandler) handleCreate(ctx context.Context, cb gateway.CallbackEvent, _ int) {
	userID := cb.From.ID
	rec, err := h.getRecord(ctx, userID)
	if err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, cb.ChatID, err)
		return
	}
	if rec != nil {
		_, _ = h.bot.SendMessage(ctx, cb.ChatID, fmt.Sprintf("You already have a %q session. Please revoke it first.", rec.Label))
		return
	}

	code, err := h.prompts.Ask(ctx, userID,
		"Please enter the one-time authorization code issued by your official client:",
		nonEmptyValidator("Authorization code must not be empty. Try again:"))
	if err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, cb.ChatID, err)
		return
	}

	grant, err := h.opener.Authorize(ctx, code)
	if err != nil {
		if errors.Is(err, errs.ErrAuthExpired) {
			_, _ = h.bot.SendMessage(ctx, cb.ChatID, "The authorization code was rejected. Request a fresh one and retry.")
			return
		}
		notifyWorkflowError(ctx, h.bot, h.logger, cb.ChatID, err)
		return
	}

	passphrase, err := h.prompts.Ask(ctx, userID,
		"Please enter a passphrase to encrypt the session:",
		nonEmptyValidator("Passphrase must not be empty. Try again:"))
	if err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, cb.ChatID, err)
		return
	}

	if _, err := h.creds.Save(ctx, userID, grant.Account.DisplayName, []byte(grant.Session), passphrase); err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, cb.ChatID, err)
		return
	}
	_, _ = h.bot.SendMessage(ctx, cb.ChatID, "Your session has been created.")
}

func (h *SessionHandler) handleChange(ctx context.Context, cb gateway.CallbackEvent, _ int) {
	userID := cb.From.ID
	rec, err := h.requireRecord(ctx, cb.ChatID, userID)
	if rec == nil || err != nil {
		return
	}

	session, err := h.unlockViaPrompt(ctx, userID, rec, "Please enter your current passphrase:")
	if err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, cb.ChatID, err)
		return
	}

	newPassphrase, err := h.prompts.Ask(ctx, userID,
		"Please enter your new passphrase:",
		nonEmptyValidator("Passphrase must not be empty. Try again:"))
	if err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, cb.ChatID, err)
		return
	}

	if _, err := h.creds.Save(ctx, userID, rec.Label, session, newPassphrase); err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, cb.ChatID, err)
		return
	}
	_, _ = h.bot.SendMessage(ctx, cb.ChatID, "Your passphrase has been changed.")
}

func (h *SessionHandler) handleRevoke(ctx context.Context, cb gateway.CallbackEvent, _ int) {
	userID := cb.From.ID
	rec, err := h.requireRecord(ctx, cb.ChatID, userID)
	if rec == nil || err != nil {
		return
	}

	session, err := h.unlockViaPrompt(ctx, userID, rec, "Please enter your passphrase to revoke the session:")
	if err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, cb.ChatID, err)
		return
	}

	sess, _, err := h.opener.Open(ctx, session)
	if err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, cb.ChatID, err)
		return
	}
	defer sess.Close()

	if err := sess.Logout(ctx); err != nil {
		h.logger.Warn("remote logout failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	if _, err := h.creds.Delete(ctx, userID); err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, cb.ChatID, err)
		return
	}
	_, _ = h.bot.SendMessage(ctx, cb.ChatID, fmt.Sprintf("Your session %q has been revoked.", rec.Label))
}

func (h *SessionHandler) handleDelete(ctx context.Context, cb gateway.CallbackEvent, _ int) {
	userID := cb.From.ID
	n, err := h.creds.Delete(ctx, userID)
	if err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, cb.ChatID, err)
		return
	}
	if n == 0 {
		_, _ = h.bot.SendMessage(ctx, cb.ChatID, "You don't have a session yet. Please create one.")
		return
	}
	_, _ = h.bot.SendMessage(ctx, cb.ChatID, "Your session has been deleted. The remote authorization stays valid until it expires.")
}

// getRecord returns nil without error when no record exists.
func (h *SessionHandler) getRecord(ctx context.Context, userID int64) (*model.CredentialRecord, error) {
	rec, err := h.creds.Get(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// requireRecord loads the record and tells the user to create one when absent.
func (h *SessionHandler) requireRecord(ctx context.Context, chatID, userID int64) (*model.CredentialRecord, error) {
	rec, err := h.getRecord(ctx, userID)
	if err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, chatID, err)
		return nil, err
	}
	if rec == nil {
		_, _ = h.bot.SendMessage(ctx, chatID, "You don't have a session yet. Please create one.")
		return nil, nil
	}
	return rec, nil
}

// unlockViaPrompt asks for the passphrase (verified against the stored digest,
// bounded retries) and decrypts the session blob.
func (h *SessionHandler) unlockViaPrompt(ctx context.Context, userID int64, rec *model.CredentialRecord, promptText string) ([]byte, error) {
	passphrase, err := h.prompts.Ask(ctx, userID, promptText, passphraseValidator(rec.PassphraseHash))
	if err != nil {
		return nil, err
	}
	return h.creds.Unlock(rec, passphrase)
}
