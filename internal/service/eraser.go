package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/nkotelnikov/telesweep/internal/catalog"
	"github.com/nkotelnikov/telesweep/internal/errs"
	"github.com/nkotelnikov/telesweep/internal/metrics"
	"github.com/nkotelnikov/telesweep/internal/model"
)

// UserSession is the session-plane surface the eraser drives. Implemented by
// *gateway.UserClient.
type UserSession interface {
	Dialogs(ctx context.Context) ([]model.Conversation, error)
	OwnMessages(ctx context.Context, convID int64) ([]int64, error)
	DeleteMessages(ctx context.Context, convID int64, ids []int64) (int, error)
	DeleteHistory(ctx context.Context, peerID int64) (int, error)
}

// ReportFunc receives one conversation's result as soon as it completes.
// err is non-nil when that conversation failed without aborting the run.
type ReportFunc func(outcome model.EraseOutcome, err error)

// Eraser runs the bulk-erasure workflow over an open delegated session.
type Eraser struct {
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewEraser constructs an Eraser.
func NewEraser(logger *zap.Logger, collector *metrics.Collector) *Eraser {
	return &Eraser{logger: logger, metrics: collector}
}

// ResolveTargets maps a request onto concrete conversations. Explicit peers and
// bulk-by-kind are mutually exclusive; the check runs before any remote call.
// Explicit resolution is all-or-nothing: one unresolvable peer fails the whole
// request with errs.ErrEntityNotFound before any deletion.
func (e *Eraser) ResolveTargets(ctx context.Context, sess UserSession, req model.EraseRequest) ([]model.Conversation, error) {
	if len(req.Peers) > 0 && req.BulkByKind {
		return nil, fmt.Errorf("%w: explicit peers and bulk-by-kind are mutually exclusive", errs.ErrConflictingParams)
	}
	if len(req.Peers) == 0 && !req.BulkByKind {
		return nil, errors.New("no resolution mode requested")
	}

	refs, err := sess.Dialogs(ctx)
	if err != nil {
		return nil, err
	}

	if req.BulkByKind {
		kind := req.Kind
		if kind == "" {
			kind = model.KindGroup
		}
		return catalog.Filter(refs, kind), nil
	}

	targets := make([]model.Conversation, 0, len(req.Peers))
	for _, peer := range req.Peers {
		ref, ok := resolvePeer(refs, peer)
		if !ok {
			return nil, fmt.Errorf("%w: %q", errs.ErrEntityNotFound, peer)
		}
		targets = append(targets, ref)
	}
	return targets, nil
}

// resolvePeer matches an identifier against the catalog: numeric ids first,
// then exact case-insensitive titles.
func resolvePeer(refs []model.Conversation, peer string) (model.Conversation, bool) {
	if id, err := strconv.ParseInt(peer, 10, 64); err == nil {
		for _, r := range refs {
			if r.ID == id {
				return r, true
			}
		}
	}
	for _, r := range refs {
		if strings.EqualFold(r.Title, peer) {
			return r, true
		}
	}
	return model.Conversation{}, false
}

// Run deletes the requesting user's messages from each target in catalog order,
// reporting each conversation as it completes. One-to-one dialogs lose their
// entire history; groups and channels lose only messages the user authored.
// Per-conversation failures are reported and skipped; connection-level failures
// abort the remainder of the run.
func (e *Eraser) Run(ctx context.Context, sess UserSession, targets []model.Conversation, report ReportFunc) error {
	runID, err := uuid.NewV4()
	if err != nil {
		return err
	}
	log := e.logger.With(zap.String("run_id", runID.String()))
	log.Info("erase run started", zap.Int("targets", len(targets)))

	for _, conv := range targets {
		outcome, err := e.eraseOne(ctx, sess, conv)
		if err != nil {
			if isConnectionError(err) {
				log.Warn("erase run aborted", zap.Int64("conversation", conv.ID), zap.Error(err))
				e.metrics.RecordEraseRun("aborted")
				return err
			}
			log.Warn("conversation skipped", zap.Int64("conversation", conv.ID), zap.Error(err))
			e.metrics.RecordConversationSkipped()
			report(outcome, err)
			continue
		}
		e.metrics.RecordMessagesDeleted(outcome.Deleted)
		log.Info("conversation erased",
			zap.Int64("conversation", conv.ID),
			zap.Int("requested", outcome.Requested),
			zap.Int("deleted", outcome.Deleted),
		)
		report(outcome, nil)
	}

	e.metrics.RecordEraseRun("ok")
	log.Info("erase run finished")
	return nil
}

func (e *Eraser) eraseOne(ctx context.Context, sess UserSession, conv model.Conversation) (model.EraseOutcome, error) {
	outcome := model.EraseOutcome{Conversation: conv}

	if conv.Kind == model.KindDialog {
		// A one-to-one history is indistinguishable from "all my messages";
		// wipe it wholesale.
		deleted, err := sess.DeleteHistory(ctx, conv.ID)
		if err != nil {
			return outcome, err
		}
		outcome.Requested = deleted
		outcome.Deleted = deleted
		return outcome, nil
	}

	ids, err := sess.OwnMessages(ctx, conv.ID)
	if err != nil {
		return outcome, err
	}
	outcome.Requested = len(ids)
	if len(ids) == 0 {
		return outcome, nil
	}

	deleted, err := sess.DeleteMessages(ctx, conv.ID, ids)
	outcome.Deleted = deleted
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

// isConnectionError reports whether err invalidates the whole session rather
// than one conversation.
func isConnectionError(err error) bool {
	if errors.Is(err, errs.ErrAuthExpired) {
		return true
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
