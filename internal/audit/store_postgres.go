package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"consentbroker/internal/consent/models"
	id "consentbroker/pkg/domain"
	"consentbroker/pkg/platform/audit/outbox"
	outboxpg "consentbroker/pkg/platform/audit/outbox/store/postgres"
)

// AggregateConsent is the outbox aggregate type for consent audit entries.
const AggregateConsent = "consent"

// PostgresStore persists audit entries in PostgreSQL. Every newly inserted
// entry also writes an outbox row in the same transaction.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs an audit store bound to a transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if s.tx != nil {
		return appendWithTx(ctx, s.tx, entry)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := appendWithTx(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit append: %w", err)
	}
	return nil
}

func appendWithTx(ctx context.Context, tx *sql.Tx, entry Entry) error {
	var previous sql.NullString
	if entry.PreviousStatus != nil {
		previous = sql.NullString{String: string(*entry.PreviousStatus), Valid: true}
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO consent_audit (id, consent_id, actor, previous_status, new_status, action, remarks, extra, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`,
		entry.ID,
		uuid.UUID(entry.ConsentID),
		entry.Actor,
		previous,
		string(entry.NewStatus),
		string(entry.Action),
		entry.Remarks,
		entry.Extra,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("audit entry rows: %w", err)
	}
	if inserted == 0 {
		// Retried append of an entry that already committed.
		return nil
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	ob := outbox.NewEntry(entry.ID, AggregateConsent, entry.ConsentID.String(),
		AggregateConsent+"."+string(entry.Action), payload, entry.Timestamp)
	return outboxpg.NewTx(tx).Append(ctx, ob)
}

const selectAudit = `
	SELECT id, consent_id, actor, previous_status, new_status, action, remarks, extra, created_at
	FROM consent_audit
`

func (s *PostgresStore) ListByConsent(ctx context.Context, consentID id.ConsentID) ([]Entry, error) {
	rows, err := s.execer().QueryContext(ctx, selectAudit+`
		WHERE consent_id = $1
		ORDER BY created_at ASC, seq ASC
	`, uuid.UUID(consentID))
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return scanEntries(rows)
}

func (s *PostgresStore) ListByConsents(ctx context.Context, consentIDs []id.ConsentID) ([]Entry, error) {
	if len(consentIDs) == 0 {
		return []Entry{}, nil
	}
	ids := make([]string, len(consentIDs))
	for i, consentID := range consentIDs {
		ids[i] = consentID.String()
	}
	// Postgres array literal; UUIDs never need quoting.
	idArray := "{" + strings.Join(ids, ",") + "}"
	rows, err := s.execer().QueryContext(ctx, selectAudit+`
		WHERE consent_id = ANY($1::uuid[])
		ORDER BY created_at ASC, seq ASC
	`, idArray)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		var consentID uuid.UUID
		var previous sql.NullString
		var newStatus, action string
		if err := rows.Scan(&entry.ID, &consentID, &entry.Actor, &previous, &newStatus, &action,
			&entry.Remarks, &entry.Extra, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.ConsentID = id.ConsentID(consentID)
		entry.NewStatus = models.Status(newStatus)
		entry.Action = models.Action(action)
		if previous.Valid {
			entry.PreviousStatus = models.Status(previous.String).Ptr()
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

var _ Store = (*PostgresStore)(nil)
