// Package directory resolves the items and parties the consent service
// gates access to. Registration and approval of parties happen elsewhere;
// this package only reads them and mirrors activity changes.
package directory

import (
	"context"

	"consentbroker/internal/consent/models"
	id "consentbroker/pkg/domain"
)

// Store is a directory backend.
// Error Contract:
// - Get methods return sentinel.ErrNotFound for unknown IDs
// - SetPartyActive returns sentinel.ErrNotFound for an unknown party
// - Infrastructure failures are wrapped with context
type Store interface {
	GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	GetParty(ctx context.Context, partyID string) (*models.Party, error)
	SetPartyActive(ctx context.Context, partyID string, active bool) error
}
