package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nkotelnikov/telesweep/internal/catalog"
	"github.com/nkotelnikov/telesweep/internal/errs"
	"github.com/nkotelnikov/telesweep/internal/gateway"
	"github.com/nkotelnikov/telesweep/internal/model"
	"github.com/nkotelnikov/telesweep/internal/service"
)

// EraseHandler implements the /erase command: unlock the session, resolve
// targets (explicit, bulk, or interactive pick), and stream per-conversation
// results back to the user.
type EraseHandler struct {
	bot        Messenger
	prompts    Prompter
	creds      service.CredentialService
	opener     SessionOpener
	eraser     *service.Eraser
	selections *selectionStore
	pageSize   int

	// dropOnAuthExpired deletes the stored record when the service reports the
	// delegated session is no longer authorized.
	dropOnAuthExpired bool

	logger *zap.Logger
}

// EraseConfig carries the knobs for NewEraseHandler.
type EraseConfig struct {
	PageSize          int
	DropOnAuthExpired bool
}

// NewEraseHandler constructs the handler with its collaborators.
func NewEraseHandler(bot Messenger, prompts Prompter, creds service.CredentialService, opener SessionOpener, eraser *service.Eraser, cfg EraseConfig, logger *zap.Logger) *EraseHandler {
	if cfg.PageSize < 1 {
		cfg.PageSize = 10
	}
	return &EraseHandler{
		bot:               bot,
		prompts:           prompts,
		creds:             creds,
		opener:            opener,
		eraser:            eraser,
		selections:        newSelectionStore(),
		pageSize:          cfg.PageSize,
		dropOnAuthExpired: cfg.DropOnAuthExpired,
		logger:            logger,
	}
}

// Command returns the /erase registration entry.
func (h *EraseHandler) Command() Command {
	return Command{
		Name:    "/erase",
		About:   "Delete your own messages from conversations",
		Handler: h.handleCommand,
	}
}

// RegisterCallbacks attaches the pagination button. It stays unlocked so page
// turns work while the command goroutine is blocked awaiting the pick reply.
func (h *EraseHandler) RegisterCallbacks(d *Dispatcher) {
	d.RegisterCallback(CbPickPage, false, h.handlePageCallback)
}

func (h *EraseHandler) handleCommand(ctx context.Context, msg gateway.InboundMessage) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	req, err := parseEraseArgs(userID, msg.Text)
	if err != nil {
		_, _ = h.bot.SendMessage(ctx, chatID, "Bad arguments: "+err.Error())
		return
	}
	// Mutually exclusive modes are rejected up front, before the credential
	// lookup, the unlock prompt, and the session connect.
	if len(req.Peers) > 0 && req.BulkByKind {
		notifyWorkflowError(ctx, h.bot, h.logger, chatID,
			fmt.Errorf("%w: explicit peers and bulk-by-kind are mutually exclusive", errs.ErrConflictingParams))
		return
	}

	rec, err := h.creds.Get(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		_, _ = h.bot.SendMessage(ctx, chatID, "You need to create a session first using /session.")
		return
	}
	if err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, chatID, err)
		return
	}

	session, err := h.unlock(ctx, userID, rec, req.Passphrase)
	if err != nil {
		notifyWorkflowError(ctx, h.bot, h.logger, chatID, err)
		return
	}

	sess, _, err := h.opener.Open(ctx, session)
	if err != nil {
		h.handleSessionError(ctx, chatID, userID, err)
		return
	}
	defer sess.Close()

	targets, err := h.resolve(ctx, sess, req, chatID, userID)
	if err != nil {
		h.handleSessionError(ctx, chatID, userID, err)
		return
	}
	if len(targets) == 0 {
		_, _ = h.bot.SendMessage(ctx, chatID, "Nothing matched. No messages were deleted.")
		return
	}

	runErr := h.eraser.Run(ctx, sess, targets, func(outcome model.EraseOutcome, err error) {
		_, _ = h.bot.SendMessage(ctx, chatID, renderOutcome(outcome, err))
	})
	if runErr != nil {
		h.handleSessionError(ctx, chatID, userID, runErr)
		return
	}
	_, _ = h.bot.SendMessage(ctx, chatID, "Done.")
}

// unlock decrypts the stored session, prompting for the passphrase when the
// command didn't carry one.
func (h *EraseHandler) unlock(ctx context.Context, userID int64, rec *model.CredentialRecord, passphrase string) ([]byte, error) {
	if passphrase == "" {
		var err error
		passphrase, err = h.prompts.Ask(ctx, userID,
			"Please enter your passphrase:", passphraseValidator(rec.PassphraseHash))
		if err != nil {
			return nil, err
		}
	}
	return h.creds.Unlock(rec, passphrase)
}

// resolve turns the request into concrete targets: explicit and bulk requests
// go through the eraser, everything else runs the interactive pick.
func (h *EraseHandler) resolve(ctx context.Context, sess UserSession, req model.EraseRequest, chatID, userID int64) ([]model.Conversation, error) {
	if len(req.Peers) > 0 || req.BulkByKind {
		return h.eraser.ResolveTargets(ctx, sess, req)
	}
	return h.pickInteractively(ctx, sess, req.Kind, chatID, userID)
}

// pickInteractively shows a paged list of conversations and waits for the user
// to reply with the number of the one to erase.
func (h *EraseHandler) pickInteractively(ctx context.Context, sess UserSession, kind model.ConversationKind, chatID, userID int64) ([]model.Conversation, error) {
	refs, err := sess.Dialogs(ctx)
	if err != nil {
		return nil, err
	}
	refs = catalog.Filter(refs, kind)
	if len(refs) == 0 {
		return nil, nil
	}

	pages := catalog.PageCount(len(refs), h.pageSize)
	messageID, err := h.bot.SendKeyboard(ctx, chatID,
		catalog.FormatPage(refs, 1, h.pageSize), pickKeyboard(1, pages))
	if err != nil {
		return nil, err
	}

	h.selections.Set(userID, &pendingSelection{
		refs:      refs,
		chatID:    chatID,
		messageID: messageID,
		pageSize:  h.pageSize,
	})
	defer h.selections.Clear(userID)

	reply, err := h.prompts.Await(ctx, userID, rangeValidator(len(refs)))
	if err != nil {
		return nil, err
	}
	n, _ := strconv.Atoi(strings.TrimSpace(reply))
	return []model.Conversation{refs[n-1]}, nil
}

// handlePageCallback redraws the pick message in place. Presses against a
// finished or superseded pick are ignored.
func (h *EraseHandler) handlePageCallback(ctx context.Context, cb gateway.CallbackEvent, page int) {
	sel, ok := h.selections.Get(cb.From.ID)
	if !ok || sel.messageID != cb.MessageID {
		return
	}
	pages := catalog.PageCount(len(sel.refs), sel.pageSize)
	if page < 1 || page > pages {
		return
	}
	err := h.bot.EditMessage(ctx, sel.chatID, sel.messageID,
		catalog.FormatPage(sel.refs, page, sel.pageSize), pickKeyboard(page, pages))
	if err != nil {
		h.logger.Warn("page redraw failed", zap.Int64("user_id", cb.From.ID), zap.Error(err))
	}
}

// handleSessionError maps a session-level failure onto a user message, applying
// the configured credential policy on authorization loss.
func (h *EraseHandler) handleSessionError(ctx context.Context, chatID, userID int64, err error) {
	if h.dropOnAuthExpired && errors.Is(err, errs.ErrAuthExpired) {
		if _, derr := h.creds.Delete(ctx, userID); derr != nil {
			h.logger.Error("dropping expired credential failed", zap.Int64("user_id", userID), zap.Error(derr))
		}
	}
	notifyWorkflowError(ctx, h.bot, h.logger, chatID, err)
}

// pickKeyboard builds the Prev/Next row for the given page.
func pickKeyboard(page, pages int) gateway.Keyboard {
	var row []gateway.Button
	if page > 1 {
		row = append(row, gateway.Button{Text: "« Prev", Data: EncodeCallback(CbPickPage, page-1)})
	}
	if page < pages {
		row = append(row, gateway.Button{Text: "Next »", Data: EncodeCallback(CbPickPage, page+1)})
	}
	if len(row) == 0 {
		return nil
	}
	return gateway.Keyboard{row}
}

// renderOutcome formats one conversation's result for the user.
func renderOutcome(outcome model.EraseOutcome, err error) string {
	title := outcome.Conversation.Title
	if err != nil {
		return fmt.Sprintf("Skipped %q: %v.", title, err)
	}
	if outcome.Conversation.Kind == model.KindDialog {
		return fmt.Sprintf("Deleted the dialog with %q (%d messages).", title, outcome.Deleted)
	}
	if outcome.Requested == 0 {
		return fmt.Sprintf("No messages of yours in %q.", title)
	}
	if outcome.Deleted < outcome.Requested {
		remaining := outcome.Requested - outcome.Deleted
		return fmt.Sprintf("Deleted %d messages of %d in %q. Remaining %d messages can't be deleted, most likely they are service messages.",
			outcome.Deleted, outcome.Requested, title, remaining)
	}
	return fmt.Sprintf("Deleted %d messages in %q.", outcome.Deleted, title)
}

// parseEraseArgs parses "/erase key=value ..." into a request. Recognized
// arguments: peers=a,b  all  kind=dialog|group|channel|any  pw=secret.
func parseEraseArgs(userID int64, text string) (model.EraseRequest, error) {
	req := model.EraseRequest{UserID: userID}
	fields := strings.Fields(text)
	if len(fields) > 0 {
		fields = fields[1:] // drop the command itself
	}
	for _, f := range fields {
		key, value, hasValue := strings.Cut(f, "=")
		switch key {
		case "all":
			if hasValue {
				return req, fmt.Errorf("argument %q takes no value", key)
			}
			req.BulkByKind = true
		case "peers":
			if value == "" {
				return req, errors.New("peers= needs at least one identifier")
			}
			for _, p := range strings.Split(value, ",") {
				if p = strings.TrimSpace(p); p != "" {
					req.Peers = append(req.Peers, p)
				}
			}
		case "kind":
			kind, err := model.ParseKind(value)
			if err != nil {
				return req, err
			}
			req.Kind = kind
		case "pw":
			if value == "" {
				return req, errors.New("pw= needs a value")
			}
			req.Passphrase = value
		default:
			return req, fmt.Errorf("unknown argument %q", f)
		}
	}
	return req, nil
}
