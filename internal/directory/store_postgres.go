package directory

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

// PostgresStore reads the directory tables maintained by the registration
// service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	var item models.Item
	var itemUUID, ownerUUID uuid.UUID
	var mode string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, type, delivery_mode, encrypted_data, encrypted_url, iv, active
		FROM items
		WHERE id = $1
	`, uuid.UUID(itemID)).Scan(&itemUUID, &ownerUUID, &item.Name, &item.Type, &mode,
		&item.EncryptedData, &item.EncryptedURL, &item.IV, &item.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	item.ID = id.ItemID(itemUUID)
	item.OwnerID = id.OwnerID(ownerUUID)
	item.DeliveryMode = models.DeliveryMode(mode)
	return &item, nil
}

func (s *PostgresStore) GetParty(ctx context.Context, partyID string) (*models.Party, error) {
	var party models.Party
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, public_key, role, active
		FROM parties
		WHERE id = $1
	`, partyID).Scan(&party.ID, &party.Name, &party.Email, &party.PublicKey, &role, &party.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get party: %w", err)
	}
	party.Role = models.Role(role)
	return &party, nil
}

func (s *PostgresStore) SetPartyActive(ctx context.Context, partyID string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE parties SET active = $2 WHERE id = $1`, partyID, active)
	if err != nil {
		return fmt.Errorf("set party active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set party active rows: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Upsert writes seed parties and items, replacing rows with the same ID.
func (s *PostgresStore) Upsert(ctx context.Context, parties []*models.Party, items []*models.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin directory upsert: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	for _, p := range parties {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO parties (id, name, email, public_key, role, active)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, email = EXCLUDED.email, public_key = EXCLUDED.public_key,
				role = EXCLUDED.role, active = EXCLUDED.active
		`, p.ID, p.Name, p.Email, p.PublicKey, string(p.Role), p.Active); err != nil {
			return fmt.Errorf("upsert party %s: %w", p.ID, err)
		}
	}
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO items (id, owner_id, name, type, delivery_mode, encrypted_data, encrypted_url, iv, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				owner_id = EXCLUDED.owner_id, name = EXCLUDED.name, type = EXCLUDED.type,
				delivery_mode = EXCLUDED.delivery_mode, encrypted_data = EXCLUDED.encrypted_data,
				encrypted_url = EXCLUDED.encrypted_url, iv = EXCLUDED.iv, active = EXCLUDED.active
		`, uuid.UUID(it.ID), uuid.UUID(it.OwnerID), it.Name, it.Type, string(it.DeliveryMode),
			it.EncryptedData, it.EncryptedURL, it.IV, it.Active); err != nil {
			return fmt.Errorf("upsert item %s: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit directory upsert: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
