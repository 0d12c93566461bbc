package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"consentbroker/internal/consent/models"
	"consentbroker/internal/platform/tracer"
	"consentbroker/internal/sentinel"
	id "consentbroker/pkg/domain"
)

// HistoryForRequester returns the audit trail of every consent the seeker
// holds, newest first, with the owning provider as counterpart.
func (s *Service) HistoryForRequester(ctx context.Context, requesterID id.RequesterID) (result []models.HistoryEntry, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanHistory, tracer.String(tracer.AttrRole, string(models.RoleSeeker)))
	defer func() {
		span.End(err)
		s.observe("history_requester", start)
	}()

	records, err := s.records.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, translate(err, "consent")
	}
	return s.history(ctx, records, func(rec *models.Record) string { return rec.OwnerID.String() })
}

// HistoryForOwner returns the audit trail of every consent on the owner's
// items, newest first, with the requesting seeker as counterpart.
func (s *Service) HistoryForOwner(ctx context.Context, ownerID id.OwnerID) (result []models.HistoryEntry, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanHistory, tracer.String(tracer.AttrRole, string(models.RoleProvider)))
	defer func() {
		span.End(err)
		s.observe("history_owner", start)
	}()

	records, err := s.records.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, translate(err, "consent")
	}
	return s.history(ctx, records, func(rec *models.Record) string { return rec.RequesterID.String() })
}

func (s *Service) history(ctx context.Context, records []*models.Record, counterpart func(*models.Record) string) ([]models.HistoryEntry, error) {
	if len(records) == 0 {
		return []models.HistoryEntry{}, nil
	}
	byID := make(map[id.ConsentID]*models.Record, len(records))
	ids := make([]id.ConsentID, 0, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
		ids = append(ids, rec.ID)
	}

	entries, err := s.auditLog.ListByConsents(ctx, ids)
	if err != nil {
		return nil, translate(err, "audit")
	}

	lookup := newLookups(s.directory)
	result := make([]models.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		rec := byID[entry.ConsentID]
		item, err := lookup.item(ctx, rec.ItemID)
		if err != nil {
			return nil, err
		}
		party, err := lookup.party(ctx, counterpart(rec))
		if err != nil {
			return nil, err
		}
		result = append(result, models.HistoryEntry{
			ConsentID:       entry.ConsentID,
			ItemName:        item.Name,
			ItemType:        item.Type,
			CounterpartName: party.Name,
			Actor:           entry.Actor,
			Action:          entry.Action,
			PreviousStatus:  entry.PreviousStatus,
			NewStatus:       entry.NewStatus,
			Timestamp:       entry.Timestamp,
			Remarks:         entry.Remarks,
			Extra:           entry.Extra,
		})
	}
	// Entries arrive oldest first; reversing keeps same-instant entries in
	// reverse insertion order.
	slices.Reverse(result)
	return result, nil
}

// lookups memoizes directory reads for one projection. Items and parties that
// disappeared from the directory render with empty names rather than
// failing the whole listing.
type lookups struct {
	directory Directory
	items     map[id.ItemID]*models.Item
	parties   map[string]*models.Party
}

func newLookups(directory Directory) *lookups {
	return &lookups{
		directory: directory,
		items:     make(map[id.ItemID]*models.Item),
		parties:   make(map[string]*models.Party),
	}
}

func (l *lookups) item(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	if item, ok := l.items[itemID]; ok {
		return item, nil
	}
	item, err := l.directory.GetItem(ctx, itemID)
	if errors.Is(err, sentinel.ErrNotFound) {
		item, err = &models.Item{ID: itemID}, nil
	}
	if err != nil {
		return nil, translate(err, "directory")
	}
	l.items[itemID] = item
	return item, nil
}

func (l *lookups) party(ctx context.Context, partyID string) (*models.Party, error) {
	if party, ok := l.parties[partyID]; ok {
		return party, nil
	}
	party, err := l.directory.GetParty(ctx, partyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		party, err = &models.Party{ID: partyID}, nil
	}
	if err != nil {
		return nil, translate(err, "directory")
	}
	l.parties[partyID] = party
	return party, nil
}
