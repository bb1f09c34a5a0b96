package bot

import (
	"sync"

	"github.com/nkotelnikov/telesweep/internal/model"
)

// pendingSelection is the per-user transient state of one interactive pick:
// the filtered snapshot being paged and the message the pages redraw into.
type pendingSelection struct {
	refs      []model.Conversation
	chatID    int64
	messageID int64
	pageSize  int
}

// selectionStore owns every pendingSelection. A new pick session overwrites the
// previous one; completion or abandonment clears it so a stale callback from an
// earlier pick cannot answer a later one.
type selectionStore struct {
	mu sync.Mutex
	m  map[int64]*pendingSelection
}

func newSelectionStore() *selectionStore {
	return &selectionStore{m: make(map[int64]*pendingSelection)}
}

func (s *selectionStore) Set(userID int64, sel *pendingSelection) {
	s.mu.Lock()
	s.m[userID] = sel
	s.mu.Unlock()
}

func (s *selectionStore) Get(userID int64) (*pendingSelection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.m[userID]
	return sel, ok
}

func (s *selectionStore) Clear(userID int64) {
	s.mu.Lock()
	delete(s.m, userID)
	s.mu.Unlock()
}
