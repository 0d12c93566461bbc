package audit

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	id "consentbroker/pkg/domain"
)

// InMemoryStore keeps audit entries in memory for tests and single-node runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.ConsentID][]Entry
	seen    map[uuid.UUID]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[id.ConsentID][]Entry),
		seen:    make(map[uuid.UUID]struct{}),
	}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(entry)
	return nil
}

func (s *InMemoryStore) appendLocked(entry Entry) {
	if _, dup := s.seen[entry.ID]; dup {
		return
	}
	s.seen[entry.ID] = struct{}{}
	s.entries[entry.ConsentID] = append(s.entries[entry.ConsentID], entry)
}

func (s *InMemoryStore) ListByConsent(_ context.Context, consentID id.ConsentID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedCopy(s.entries[consentID]), nil
}

func (s *InMemoryStore) ListByConsents(_ context.Context, consentIDs []id.ConsentID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, consentID := range consentIDs {
		out = append(out, s.entries[consentID]...)
	}
	return sortedCopy(out), nil
}

// Begin returns a staging appender whose entries become visible only on Commit.
func (s *InMemoryStore) Begin() *MemoryTx {
	return &MemoryTx{base: s}
}

// MemoryTx buffers appends for one unit of work.
type MemoryTx struct {
	base   *InMemoryStore
	staged []Entry
}

func (t *MemoryTx) Append(_ context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	t.staged = append(t.staged, entry)
	return nil
}

// Commit publishes all staged entries in one step.
func (t *MemoryTx) Commit() {
	if len(t.staged) == 0 {
		return
	}
	t.base.mu.Lock()
	defer t.base.mu.Unlock()
	for _, entry := range t.staged {
		t.base.appendLocked(entry)
	}
	t.staged = nil
}

func sortedCopy(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	slices.SortStableFunc(out, func(a, b Entry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}
