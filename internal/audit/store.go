package audit

import (
	"context"
	"fmt"

	"consentbroker/internal/sentinel"
	id "consentbroker/pkg/domain"
)

// Store is the append-only audit log.
// Error Contract:
// - Append is idempotent on Entry.ID
// - Append returns sentinel.ErrInvalidState (wrapped) for malformed entries
// - List methods return entries ordered by Timestamp ascending and an empty
//   slice, not an error, when nothing was recorded
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByConsent(ctx context.Context, consentID id.ConsentID) ([]Entry, error)
	ListByConsents(ctx context.Context, consentIDs []id.ConsentID) ([]Entry, error)
}

func errInvalidEntry(msg string) error {
	return fmt.Errorf("%s: %w", msg, sentinel.ErrInvalidState)
}
