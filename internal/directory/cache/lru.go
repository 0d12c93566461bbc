package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"consentbroker/internal/consent/models"
	"consentbroker/internal/sentinel"
	id "consentbroker/pkg/domain"
)

// LRUBackend is an in-process cache with per-entry TTL.
type LRUBackend struct {
	items   *expirable.LRU[id.ItemID, models.Item]
	parties *expirable.LRU[string, models.Party]
}

// NewLRUBackend caps each record type at size entries.
func NewLRUBackend(size int, ttl time.Duration) *LRUBackend {
	return &LRUBackend{
		items:   expirable.NewLRU[id.ItemID, models.Item](size, nil, ttl),
		parties: expirable.NewLRU[string, models.Party](size, nil, ttl),
	}
}

func (b *LRUBackend) LoadItem(_ context.Context, itemID id.ItemID) (*models.Item, error) {
	item, ok := b.items.Get(itemID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &item, nil
}

func (b *LRUBackend) StoreItem(_ context.Context, item *models.Item) error {
	b.items.Add(item.ID, *item)
	return nil
}

func (b *LRUBackend) LoadParty(_ context.Context, partyID string) (*models.Party, error) {
	party, ok := b.parties.Get(partyID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &party, nil
}

func (b *LRUBackend) StoreParty(_ context.Context, party *models.Party) error {
	b.parties.Add(party.ID, *party)
	return nil
}

func (b *LRUBackend) DeleteParty(_ context.Context, partyID string) error {
	b.parties.Remove(partyID)
	return nil
}

var _ Backend = (*LRUBackend)(nil)
