package store

import (
	"context"
	"slices"
	"sync"

	"consentbroker/internal/consent/models"
	"consentbroker/internal/sentinel"
	id "consentbroker/pkg/domain"
)

// InMemoryStore stores consent records in memory for tests and single-node runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.ConsentID]*models.Record
	byPair  map[string]id.ConsentID
}

// New constructs an empty in-memory consent store.
func New() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[id.ConsentID]*models.Record),
		byPair:  make(map[string]id.ConsentID),
	}
}

func (s *InMemoryStore) FindByPair(_ context.Context, itemID id.ItemID, requesterID id.RequesterID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByPairLocked(itemID, requesterID)
}

func (s *InMemoryStore) findByPairLocked(itemID id.ItemID, requesterID id.RequesterID) (*models.Record, error) {
	consentID, ok := s.byPair[PairKey(itemID, requesterID)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.findByIDLocked(consentID)
}

func (s *InMemoryStore) FindByID(_ context.Context, consentID id.ConsentID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByIDLocked(consentID)
}

func (s *InMemoryStore) findByIDLocked(consentID id.ConsentID) (*models.Record, error) {
	record, ok := s.records[consentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyRecord := *record
	return &copyRecord, nil
}

func (s *InMemoryStore) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCreateLocked(record); err != nil {
		return err
	}
	record.Version = 1
	s.putLocked(record)
	return nil
}

func (s *InMemoryStore) checkCreateLocked(record *models.Record) error {
	if _, exists := s.byPair[PairKey(record.ItemID, record.RequesterID)]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUpdateLocked(record.ID, record.Version); err != nil {
		return err
	}
	record.Version++
	s.putLocked(record)
	return nil
}

func (s *InMemoryStore) checkUpdateLocked(consentID id.ConsentID, version int64) error {
	existing, ok := s.records[consentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.Version != version {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *InMemoryStore) putLocked(record *models.Record) {
	copyRecord := *record
	s.records[record.ID] = &copyRecord
	s.byPair[PairKey(record.ItemID, record.RequesterID)] = record.ID
}

func (s *InMemoryStore) ListPendingByOwner(_ context.Context, ownerID id.OwnerID) ([]*models.Record, error) {
	return s.list(func(r *models.Record) bool {
		return r.OwnerID == ownerID && r.Active && r.Status == models.StatusPending
	}), nil
}

func (s *InMemoryStore) ListByRequester(_ context.Context, requesterID id.RequesterID) ([]*models.Record, error) {
	return s.list(func(r *models.Record) bool { return r.RequesterID == requesterID }), nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, ownerID id.OwnerID) ([]*models.Record, error) {
	return s.list(func(r *models.Record) bool { return r.OwnerID == ownerID }), nil
}

func (s *InMemoryStore) list(match func(*models.Record) bool) []*models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Record{}
	for _, record := range s.records {
		if !match(record) {
			continue
		}
		// Return a copy to prevent external modifications
		copyRecord := *record
		out = append(out, &copyRecord)
	}
	slices.SortFunc(out, func(a, b *models.Record) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

func (s *InMemoryStore) SetActiveByOwner(_ context.Context, ownerID id.OwnerID, active bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, record := range s.records {
		if record.OwnerID != ownerID || record.Active == active {
			continue
		}
		record.Active = active
		record.Version++
		changed++
	}
	return changed, nil
}

// Begin returns a unit of work whose writes become visible only on Commit.
func (s *InMemoryStore) Begin() *MemoryTx {
	return &MemoryTx{base: s, staged: make(map[id.ConsentID]stagedWrite)}
}

type stagedWrite struct {
	record   models.Record
	created  bool
	baseline int64
}

// MemoryTx buffers record writes for one unit of work. Reads see the staged
// writes first. Commit re-checks versions so a stale unit of work fails with
// sentinel.ErrConflict instead of overwriting a newer record.
type MemoryTx struct {
	base   *InMemoryStore
	staged map[id.ConsentID]stagedWrite
	order  []id.ConsentID
}

func (t *MemoryTx) FindByPair(ctx context.Context, itemID id.ItemID, requesterID id.RequesterID) (*models.Record, error) {
	for _, consentID := range t.order {
		w := t.staged[consentID]
		if w.record.ItemID == itemID && w.record.RequesterID == requesterID {
			copyRecord := w.record
			return &copyRecord, nil
		}
	}
	return t.base.FindByPair(ctx, itemID, requesterID)
}

func (t *MemoryTx) FindByID(ctx context.Context, consentID id.ConsentID) (*models.Record, error) {
	if w, ok := t.staged[consentID]; ok {
		copyRecord := w.record
		return &copyRecord, nil
	}
	return t.base.FindByID(ctx, consentID)
}

func (t *MemoryTx) Create(ctx context.Context, record *models.Record) error {
	if _, err := t.FindByPair(ctx, record.ItemID, record.RequesterID); err == nil {
		return sentinel.ErrConflict
	}
	record.Version = 1
	t.stage(stagedWrite{record: *record, created: true})
	return nil
}

func (t *MemoryTx) Update(ctx context.Context, record *models.Record) error {
	current, err := t.FindByID(ctx, record.ID)
	if err != nil {
		return err
	}
	if current.Version != record.Version {
		return sentinel.ErrConflict
	}
	w, ok := t.staged[record.ID]
	if !ok {
		w = stagedWrite{baseline: current.Version}
	}
	record.Version++
	w.record = *record
	t.stage(w)
	return nil
}

func (t *MemoryTx) stage(w stagedWrite) {
	if _, ok := t.staged[w.record.ID]; !ok {
		t.order = append(t.order, w.record.ID)
	}
	t.staged[w.record.ID] = w
}

// Commit applies all staged writes atomically or none of them.
func (t *MemoryTx) Commit() error {
	if len(t.order) == 0 {
		return nil
	}
	t.base.mu.Lock()
	defer t.base.mu.Unlock()
	for _, consentID := range t.order {
		w := t.staged[consentID]
		if w.created {
			if err := t.base.checkCreateLocked(&w.record); err != nil {
				return err
			}
			continue
		}
		if err := t.base.checkUpdateLocked(consentID, w.baseline); err != nil {
			return err
		}
	}
	for _, consentID := range t.order {
		w := t.staged[consentID]
		t.base.putLocked(&w.record)
	}
	t.staged = make(map[id.ConsentID]stagedWrite)
	t.order = nil
	return nil
}

var (
	_ Store   = (*InMemoryStore)(nil)
	_ TxStore = (*MemoryTx)(nil)
)
