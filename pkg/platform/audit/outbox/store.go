package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClaimFunc handles one claimed batch. tx is bound to the claiming
// transaction; marks made through it commit when the func returns nil.
type ClaimFunc func(ctx context.Context, tx Store, entries []*Entry) error

// Store persists audit outbox entries. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append adds an entry. Call it on a store bound to the transaction
	// that writes the audit entry.
	Append(ctx context.Context, entry *Entry) error

	// Claim locks up to limit pending entries, oldest first, for the
	// duration of fn. Other workers skip locked rows instead of waiting, so
	// an entry is published by one worker at a time. An error from fn rolls
	// the claim back and leaves every entry pending.
	Claim(ctx context.Context, limit int, fn ClaimFunc) error

	// FetchUnprocessed returns up to limit pending entries, oldest first.
	// Outside Claim the rows are not held.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)

	// MarkProcessed records a successful publish.
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	// CountPending feeds the pending depth gauge.
	CountPending(ctx context.Context) (int64, error)

	// DeleteProcessedBefore drops published entries older than before.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
