package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"consentbroker/internal/consent/models"
	"consentbroker/internal/sentinel"
	id "consentbroker/pkg/domain"
)

// PostgresStore persists consent records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed consent store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a PostgreSQL-backed consent store bound to a transaction.
// Lookups through a tx-bound store lock the returned row until the transaction ends.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) lockClause() string {
	if s.tx != nil {
		return " FOR UPDATE"
	}
	return ""
}

const selectConsent = `
	SELECT id, item_id, requester_id, owner_id, status, access_count, valid_until,
	       released_key, active, created_at, updated_at, version
	FROM consents
`

func (s *PostgresStore) FindByPair(ctx context.Context, itemID id.ItemID, requesterID id.RequesterID) (*models.Record, error) {
	query := selectConsent + `WHERE item_id = $1 AND requester_id = $2` + s.lockClause()
	record, err := scanConsent(s.execer().QueryRowContext(ctx, query, uuid.UUID(itemID), uuid.UUID(requesterID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find consent by pair: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, consentID id.ConsentID) (*models.Record, error) {
	query := selectConsent + `WHERE id = $1` + s.lockClause()
	record, err := scanConsent(s.execer().QueryRowContext(ctx, query, uuid.UUID(consentID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find consent: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Create(ctx context.Context, record *models.Record) error {
	if record == nil {
		return fmt.Errorf("consent record is required")
	}
	query := `
		INSERT INTO consents (id, item_id, requester_id, owner_id, status, access_count, valid_until,
		                      released_key, active, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
		ON CONFLICT (item_id, requester_id) DO NOTHING
		RETURNING id
	`
	var storedID uuid.UUID
	err := s.execer().QueryRowContext(ctx, query,
		uuid.UUID(record.ID),
		uuid.UUID(record.ItemID),
		uuid.UUID(record.RequesterID),
		uuid.UUID(record.OwnerID),
		string(record.Status),
		record.AccessCount,
		record.ValidUntil,
		record.ReleasedKey,
		record.Active,
		record.CreatedAt,
		record.UpdatedAt,
	).Scan(&storedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// A concurrent request created the pair first.
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create consent: %w", err)
	}
	record.Version = 1
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, record *models.Record) error {
	if record == nil {
		return fmt.Errorf("consent record is required")
	}
	query := `
		UPDATE consents
		SET status = $3, access_count = $4, valid_until = $5, released_key = $6,
		    active = $7, updated_at = $8, version = version + 1
		WHERE id = $1 AND version = $2
	`
	res, err := s.execer().ExecContext(ctx, query,
		uuid.UUID(record.ID),
		record.Version,
		string(record.Status),
		record.AccessCount,
		record.ValidUntil,
		record.ReleasedKey,
		record.Active,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update consent: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update consent rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	record.Version++
	return nil
}

func (s *PostgresStore) ListPendingByOwner(ctx context.Context, ownerID id.OwnerID) ([]*models.Record, error) {
	return s.list(ctx, selectConsent+`
		WHERE owner_id = $1 AND status = 'pending' AND active
		ORDER BY created_at ASC
	`, uuid.UUID(ownerID))
}

func (s *PostgresStore) ListByRequester(ctx context.Context, requesterID id.RequesterID) ([]*models.Record, error) {
	return s.list(ctx, selectConsent+`
		WHERE requester_id = $1
		ORDER BY created_at ASC
	`, uuid.UUID(requesterID))
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID id.OwnerID) ([]*models.Record, error) {
	return s.list(ctx, selectConsent+`
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`, uuid.UUID(ownerID))
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Record, error) {
	rows, err := s.execer().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	records := []*models.Record{}
	for rows.Next() {
		record, err := scanConsent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) SetActiveByOwner(ctx context.Context, ownerID id.OwnerID, active bool) (int, error) {
	res, err := s.execer().ExecContext(ctx, `
		UPDATE consents
		SET active = $2, version = version + 1
		WHERE owner_id = $1 AND active <> $2
	`, uuid.UUID(ownerID), active)
	if err != nil {
		return 0, fmt.Errorf("set consent activity: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set consent activity rows: %w", err)
	}
	return int(rows), nil
}

type consentRow interface {
	Scan(dest ...any) error
}

func scanConsent(row consentRow) (*models.Record, error) {
	var record models.Record
	var consentID, itemID, requesterID, ownerID uuid.UUID
	var status string
	var releasedKey sql.NullString
	if err := row.Scan(&consentID, &itemID, &requesterID, &ownerID, &status, &record.AccessCount,
		&record.ValidUntil, &releasedKey, &record.Active, &record.CreatedAt, &record.UpdatedAt,
		&record.Version); err != nil {
		return nil, err
	}
	record.ID = id.ConsentID(consentID)
	record.ItemID = id.ItemID(itemID)
	record.RequesterID = id.RequesterID(requesterID)
	record.OwnerID = id.OwnerID(ownerID)
	record.Status = models.Status(status)
	record.ReleasedKey = releasedKey.String
	record.ValidUntil = record.ValidUntil.UTC()
	return &record, nil
}

var _ Store = (*PostgresStore)(nil)
