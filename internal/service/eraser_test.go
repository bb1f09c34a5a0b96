package service

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nkotelnikov/telesweep/internal/errs"
	"github.com/nkotelnikov/telesweep/internal/metrics"
	"github.com/nkotelnikov/telesweep/internal/model"
)

type fakeSession struct {
	dialogs    []model.Conversation
	dialogsErr error

	// own message ids per conversation
	own     map[int64][]int64
	ownErr  map[int64]error
	deleted map[int64]int // service-reported deletions per conversation

	historyDeleted map[int64]int
	deleteErr      map[int64]error

	dialogCalls  int
	deleteCalls  []int64
	historyCalls []int64
}

var _ UserSession = (*fakeSession)(nil)

func (f *fakeSession) Dialogs(context.Context) ([]model.Conversation, error) {
	f.dialogCalls++
	if f.dialogsErr != nil {
		return nil, f.dialogsErr
	}
	return f.dialogs, nil
}

func (f *fakeSession) OwnMessages(_ context.Context, convID int64) ([]int64, error) {
	if err := f.ownErr[convID]; err != nil {
		return nil, err
	}
	return f.own[convID], nil
}

func (f *fakeSession) DeleteMessages(_ context.Context, convID int64, ids []int64) (int, error) {
	f.deleteCalls = append(f.deleteCalls, convID)
	if err := f.deleteErr[convID]; err != nil {
		return 0, err
	}
	if n, ok := f.deleted[convID]; ok {
		return n, nil
	}
	return len(ids), nil
}

func (f *fakeSession) DeleteHistory(_ context.Context, peerID int64) (int, error) {
	f.historyCalls = append(f.historyCalls, peerID)
	if err := f.deleteErr[peerID]; err != nil {
		return 0, err
	}
	return f.historyDeleted[peerID], nil
}

func newTestEraser() *Eraser {
	return NewEraser(zap.NewNop(), metrics.NewCollector(prometheus.NewRegistry()))
}

func testCatalog() []model.Conversation {
	return []model.Conversation{
		{ID: 1, Title: "Bob", Kind: model.KindDialog},
		{ID: 2, Title: "Team", Kind: model.KindGroup},
		{ID: 3, Title: "News", Kind: model.KindChannel},
		{ID: 4, Title: "Friends", Kind: model.KindGroup},
	}
}

func TestResolveTargets_ConflictingParams(t *testing.T) {
	e := newTestEraser()
	sess := &fakeSession{dialogs: testCatalog()}

	_, err := e.ResolveTargets(context.Background(), sess, model.EraseRequest{
		UserID:     42,
		Peers:      []string{"Team"},
		BulkByKind: true,
	})
	require.ErrorIs(t, err, errs.ErrConflictingParams)
	require.Zero(t, sess.dialogCalls, "conflict must be rejected before any remote call")
}

func TestResolveTargets_ExplicitAllOrNothing(t *testing.T) {
	e := newTestEraser()
	sess := &fakeSession{dialogs: testCatalog()}

	_, err := e.ResolveTargets(context.Background(), sess, model.EraseRequest{
		UserID: 42,
		Peers:  []string{"Team", "NoSuchChat"},
	})
	require.ErrorIs(t, err, errs.ErrEntityNotFound)
	require.Empty(t, sess.deleteCalls, "nothing may be deleted when one peer is unresolvable")
	require.Empty(t, sess.historyCalls)
}

func TestResolveTargets_ExplicitByIDAndTitle(t *testing.T) {
	e := newTestEraser()
	sess := &fakeSession{dialogs: testCatalog()}

	targets, err := e.ResolveTargets(context.Background(), sess, model.EraseRequest{
		UserID: 42,
		Peers:  []string{"2", "friends"},
	})
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.EqualValues(t, 2, targets[0].ID)
	require.EqualValues(t, 4, targets[1].ID)
}

func TestResolveTargets_BulkDefaultsToGroups(t *testing.T) {
	e := newTestEraser()
	sess := &fakeSession{dialogs: testCatalog()}

	targets, err := e.ResolveTargets(context.Background(), sess, model.EraseRequest{
		UserID:     42,
		BulkByKind: true,
	})
	require.NoError(t, err)
	require.Len(t, targets, 2)
	for _, tr := range targets {
		require.Equal(t, model.KindGroup, tr.Kind)
	}
}

func TestResolveTargets_BulkAny(t *testing.T) {
	e := newTestEraser()
	sess := &fakeSession{dialogs: testCatalog()}

	targets, err := e.ResolveTargets(context.Background(), sess, model.EraseRequest{
		UserID:     42,
		BulkByKind: true,
		Kind:       model.KindAny,
	})
	require.NoError(t, err)
	require.Len(t, targets, 4)
}

func TestRun_GroupWithShortfall(t *testing.T) {
	e := newTestEraser()
	sess := &fakeSession{
		own:     map[int64][]int64{2: {1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		deleted: map[int64]int{2: 7},
	}

	var outcomes []model.EraseOutcome
	err := e.Run(context.Background(), sess, []model.Conversation{{ID: 2, Title: "Team", Kind: model.KindGroup}},
		func(o model.EraseOutcome, err error) {
			require.NoError(t, err)
			outcomes = append(outcomes, o)
		})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, 10, outcomes[0].Requested)
	require.Equal(t, 7, outcomes[0].Deleted)
}

func TestRun_DialogWipesHistory(t *testing.T) {
	e := newTestEraser()
	sess := &fakeSession{historyDeleted: map[int64]int{1: 23}}

	var outcomes []model.EraseOutcome
	err := e.Run(context.Background(), sess, []model.Conversation{{ID: 1, Title: "Bob", Kind: model.KindDialog}},
		func(o model.EraseOutcome, err error) {
			require.NoError(t, err)
			outcomes = append(outcomes, o)
		})
	require.NoError(t, err)
	require.Equal(t, []int64{1}, sess.historyCalls)
	require.Empty(t, sess.deleteCalls, "dialog erasure must not fetch-and-delete")
	require.Equal(t, 23, outcomes[0].Deleted)
}

func TestRun_EmptyConversationReported(t *testing.T) {
	e := newTestEraser()
	sess := &fakeSession{own: map[int64][]int64{2: nil}}

	var outcomes []model.EraseOutcome
	err := e.Run(context.Background(), sess, []model.Conversation{{ID: 2, Title: "Team", Kind: model.KindGroup}},
		func(o model.EraseOutcome, err error) { outcomes = append(outcomes, o) })
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Zero(t, outcomes[0].Requested)
	require.Empty(t, sess.deleteCalls, "no deletion call for an empty fetch")
}

func TestRun_AbortsOnAuthExpired(t *testing.T) {
	e := newTestEraser()
	sess := &fakeSession{
		own:       map[int64][]int64{2: {1}, 4: {1}},
		ownErr:    map[int64]error{4: errs.ErrAuthExpired},
		deleteErr: map[int64]error{},
	}

	targets := []model.Conversation{
		{ID: 2, Title: "Team", Kind: model.KindGroup},
		{ID: 4, Title: "Friends", Kind: model.KindGroup},
	}
	var reported int
	err := e.Run(context.Background(), sess, targets, func(o model.EraseOutcome, err error) { reported++ })
	require.ErrorIs(t, err, errs.ErrAuthExpired)
	require.Equal(t, 1, reported, "completed conversations stay reported, run stops")
}

func TestRun_AbortsOnTransportError(t *testing.T) {
	e := newTestEraser()
	transport := &url.Error{Op: "Get", URL: "http://gw", Err: errors.New("connection refused")}
	sess := &fakeSession{ownErr: map[int64]error{2: transport}}

	err := e.Run(context.Background(), sess,
		[]model.Conversation{{ID: 2, Title: "Team", Kind: model.KindGroup}},
		func(model.EraseOutcome, error) {})
	require.Error(t, err)
	var uerr *url.Error
	require.ErrorAs(t, err, &uerr)
}

func TestRun_SkipsFailedConversation(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := NewEraser(zap.NewNop(), metrics.NewCollector(reg))
	sess := &fakeSession{
		own:    map[int64][]int64{2: {1, 2}, 4: {3}},
		ownErr: map[int64]error{2: errors.New("conversation is read-only")},
	}

	targets := []model.Conversation{
		{ID: 2, Title: "Team", Kind: model.KindGroup},
		{ID: 4, Title: "Friends", Kind: model.KindGroup},
	}
	var failed, succeeded int
	err := e.Run(context.Background(), sess, targets, func(o model.EraseOutcome, err error) {
		if err != nil {
			failed++
		} else {
			succeeded++
		}
	})
	require.NoError(t, err)
	require.Equal(t, 1, failed)
	require.Equal(t, 1, succeeded, "remaining conversations still processed")

	// a skipped conversation is not a gateway failure
	require.EqualValues(t, 1, counterValue(t, reg, "telesweep_conversations_skipped_total"))
	require.EqualValues(t, 0, counterValue(t, reg, "telesweep_gateway_errors_total"))
}

// counterValue sums every series of the named counter family in reg.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}
