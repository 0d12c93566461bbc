package audit

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentbroker/internal/consent/models"
	id "consentbroker/pkg/domain"
)

func TestPostgresAppendWritesOutboxRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	entry := requestEntry(id.NewConsentID(), time.Now().UTC())
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO consent_audit")).
		WithArgs(entry.ID, uuid.UUID(entry.ConsentID), entry.Actor, nil, "pending", "request",
			entry.Remarks, entry.Extra, entry.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox")).
		WithArgs(entry.ID, AggregateConsent, entry.ConsentID.String(), "consent.request", sqlmock.AnyArg(), entry.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewPostgres(db).Append(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendReplayDoesNotDuplicateOutbox(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	entry := requestEntry(id.NewConsentID(), time.Now().UTC())
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, NewPostgresTx(tx).Append(context.Background(), entry))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendRejectsMalformedEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.Error(t, NewPostgres(db).Append(context.Background(), Entry{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListByConsents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	consentID := id.NewConsentID()
	entryID := uuid.New()
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("consent_id = ANY($1::uuid[])")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "consent_id", "actor", "previous_status", "new_status",
			"action", "remarks", "extra", "created_at"}).
			AddRow(entryID.String(), consentID.String(), "system", "approved", "expired", "expire",
				"validity elapsed", "remaining_count=2", at))

	entries, err := NewPostgres(db).ListByConsents(context.Background(), []id.ConsentID{consentID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	got := entries[0]
	assert.Equal(t, entryID, got.ID)
	assert.Equal(t, consentID, got.ConsentID)
	require.NotNil(t, got.PreviousStatus)
	assert.Equal(t, models.StatusApproved, *got.PreviousStatus)
	assert.Equal(t, models.StatusExpired, got.NewStatus)
	assert.Equal(t, models.ActionExpire, got.Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListByConsentsEmptyInput(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	entries, err := NewPostgres(db).ListByConsents(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
