package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentbroker/internal/consent/models"
	"consentbroker/internal/sentinel"
	id "consentbroker/pkg/domain"
)

func requestEntry(consentID id.ConsentID, at time.Time) Entry {
	return Entry{
		ID:        uuid.New(),
		ConsentID: consentID,
		Actor:     "seeker-1",
		NewStatus: models.StatusPending,
		Action:    models.ActionRequest,
		Timestamp: at,
		Remarks:   "access requested",
	}
}

func TestEntryValidate(t *testing.T) {
	valid := requestEntry(id.NewConsentID(), time.Now())
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Entry)
	}{
		{"missing id", func(e *Entry) { e.ID = uuid.Nil }},
		{"missing consent", func(e *Entry) { e.ConsentID = id.ConsentID(uuid.Nil) }},
		{"missing actor", func(e *Entry) { e.Actor = "" }},
		{"unknown action", func(e *Entry) { e.Action = "delete" }},
		{"unknown status", func(e *Entry) { e.NewStatus = "archived" }},
		{"non-request without previous status", func(e *Entry) { e.Action = models.ActionApprove }},
		{"zero timestamp", func(e *Entry) { e.Timestamp = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := valid
			tt.mutate(&entry)
			err := entry.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, sentinel.ErrInvalidState))
		})
	}
}

func TestInMemoryStoreAppendIsIdempotent(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	entry := requestEntry(id.NewConsentID(), time.Now())

	require.NoError(t, store.Append(ctx, entry))
	require.NoError(t, store.Append(ctx, entry))

	entries, err := store.ListByConsent(ctx, entry.ConsentID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestInMemoryStoreOrdersByTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now()
	a, b := id.NewConsentID(), id.NewConsentID()

	later := requestEntry(a, base.Add(2*time.Second))
	earlier := requestEntry(b, base)
	middle := requestEntry(a, base.Add(time.Second))
	for _, e := range []Entry{later, earlier, middle} {
		require.NoError(t, store.Append(ctx, e))
	}

	entries, err := store.ListByConsents(ctx, []id.ConsentID{a, b})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, earlier.ID, entries[0].ID)
	assert.Equal(t, middle.ID, entries[1].ID)
	assert.Equal(t, later.ID, entries[2].ID)
}

func TestMemoryTxStagesUntilCommit(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	entry := requestEntry(id.NewConsentID(), time.Now())

	tx := store.Begin()
	require.NoError(t, tx.Append(ctx, entry))
	require.Error(t, tx.Append(ctx, Entry{}), "malformed entries are rejected at staging")

	before, err := store.ListByConsent(ctx, entry.ConsentID)
	require.NoError(t, err)
	assert.Empty(t, before)

	tx.Commit()
	after, err := store.ListByConsent(ctx, entry.ConsentID)
	require.NoError(t, err)
	assert.Len(t, after, 1)
}
