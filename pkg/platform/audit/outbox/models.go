package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a pending event in the outbox table, written in the same
// transaction as the audit entry it describes.
type Entry struct {
	ID            uuid.UUID
	AggregateType string     // e.g. "consent"
	AggregateID   string     // e.g. the consent ID
	EventType     string     // e.g. "consent.approve"
	Payload       []byte     // JSON-encoded audit entry
	CreatedAt     time.Time  // When the entry was created
	ProcessedAt   *time.Time // NULL = pending, non-NULL = published
}

// IsPending returns true if this entry has not been processed yet.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// NewEntry creates a new outbox entry. The ID is reused from the source event
// so a replayed write produces the same outbox key.
func NewEntry(id uuid.UUID, aggregateType, aggregateID, eventType string, payload []byte, createdAt time.Time) *Entry {
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Entry{
		ID:            id,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     createdAt,
	}
}
