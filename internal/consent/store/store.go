package store

import (
	"context"

	"consentbroker/internal/consent/models"
	id "consentbroker/pkg/domain"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the requested record does not exist
// - Return sentinel.ErrConflict when Create hits an existing (item, requester)
//   pair or Update carries a stale Version
// - Return wrapped errors with context for infrastructure failures
//
// Update is conditional on Record.Version. On success the stored version and
// the caller's copy are both incremented.

// TxStore is the subset usable inside a unit of work.
type TxStore interface {
	FindByPair(ctx context.Context, itemID id.ItemID, requesterID id.RequesterID) (*models.Record, error)
	FindByID(ctx context.Context, consentID id.ConsentID) (*models.Record, error)
	Create(ctx context.Context, record *models.Record) error
	Update(ctx context.Context, record *models.Record) error
}

// Store is the full consent record store, including read projections and
// owner-wide reconciliation.
type Store interface {
	TxStore
	ListPendingByOwner(ctx context.Context, ownerID id.OwnerID) ([]*models.Record, error)
	ListByRequester(ctx context.Context, requesterID id.RequesterID) ([]*models.Record, error)
	ListByOwner(ctx context.Context, ownerID id.OwnerID) ([]*models.Record, error)
	// SetActiveByOwner flips Active on every record of the owner and reports
	// how many records changed. UpdatedAt is left as the last transition time.
	SetActiveByOwner(ctx context.Context, ownerID id.OwnerID, active bool) (int, error)
}

// PairKey identifies the lock scope of one consent relationship.
func PairKey(itemID id.ItemID, requesterID id.RequesterID) string {
	return itemID.String() + "/" + requesterID.String()
}
