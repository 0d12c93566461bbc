// Package cache puts a read-through cache in front of a directory store.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"consentbroker/internal/consent/models"
	"consentbroker/internal/directory"
	"consentbroker/internal/directory/metrics"
	"consentbroker/internal/sentinel"
	id "consentbroker/pkg/domain"
)

const (
	recordItem  = "item"
	recordParty = "party"
)

// Backend stores cached directory records.
// Load methods return sentinel.ErrNotFound on a miss.
type Backend interface {
	LoadItem(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	StoreItem(ctx context.Context, item *models.Item) error
	LoadParty(ctx context.Context, partyID string) (*models.Party, error)
	StoreParty(ctx context.Context, party *models.Party) error
	DeleteParty(ctx context.Context, partyID string) error
}

// Store wraps a directory store with a cache backend. Backend failures are
// logged and fall through to the source; they never fail a lookup.
type Store struct {
	source  directory.Store
	backend Backend
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Store)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func New(source directory.Store, backend Backend, opts ...Option) *Store {
	s := &Store{
		source:  source,
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	start := time.Now()
	cached, err := s.backend.LoadItem(ctx, itemID)
	if err == nil {
		s.recordHit(recordItem, start)
		return cached, nil
	}
	s.recordLookupError(ctx, recordItem, start, err)

	item, err := s.source.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.backend.StoreItem(ctx, item); err != nil {
		s.logger.WarnContext(ctx, "directory cache write failed",
			"type", recordItem, "item_id", itemID.String(), "error", err)
	}
	return item, nil
}

func (s *Store) GetParty(ctx context.Context, partyID string) (*models.Party, error) {
	start := time.Now()
	cached, err := s.backend.LoadParty(ctx, partyID)
	if err == nil {
		s.recordHit(recordParty, start)
		return cached, nil
	}
	s.recordLookupError(ctx, recordParty, start, err)

	party, err := s.source.GetParty(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if err := s.backend.StoreParty(ctx, party); err != nil {
		s.logger.WarnContext(ctx, "directory cache write failed",
			"type", recordParty, "party_id", partyID, "error", err)
	}
	return party, nil
}

// SetPartyActive writes through to the source and drops the cached party so
// the next lookup sees the new flag.
func (s *Store) SetPartyActive(ctx context.Context, partyID string, active bool) error {
	if err := s.source.SetPartyActive(ctx, partyID, active); err != nil {
		return err
	}
	if err := s.backend.DeleteParty(ctx, partyID); err != nil {
		s.logger.WarnContext(ctx, "directory cache invalidation failed",
			"party_id", partyID, "error", err)
		return nil
	}
	if s.metrics != nil {
		s.metrics.IncrementInvalidations(recordParty)
	}
	return nil
}

func (s *Store) recordHit(recordType string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCacheHit(recordType)
	s.metrics.ObserveLookupDuration(recordType, time.Since(start).Seconds())
}

func (s *Store) recordLookupError(ctx context.Context, recordType string, start time.Time, err error) {
	if !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "directory cache read failed", "type", recordType, "error", err)
	}
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCacheMiss(recordType)
	s.metrics.ObserveLookupDuration(recordType, time.Since(start).Seconds())
}

var _ directory.Store = (*Store)(nil)
