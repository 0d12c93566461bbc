//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"consentbroker/internal/consent/models"
	"consentbroker/migrations"
	id "consentbroker/pkg/domain"
)

// PostgresContainer wraps a testcontainers Postgres instance.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container with migrations applied.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("consentbroker_test"),
		postgres.WithUsername("consentbroker"),
		postgres.WithPassword("consentbroker_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	pc := &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}

	if err := pc.runMigrations(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Note: We don't register t.Cleanup here because the container is managed
	// by the singleton Manager and shared across test suites. Ryuk (testcontainers'
	// cleanup sidecar) handles container cleanup when the test process exits.

	return pc
}

// runMigrations applies the embedded schema.
func (p *PostgresContainer) runMigrations(ctx context.Context) error {
	_, err := migrations.Up(ctx, p.DB)
	return err
}

// TruncateTables clears all data from the specified tables.
// Use between tests to ensure isolation without restarting the container.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		_, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE")
		if err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// TruncateAll truncates the audit pipeline tables.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	return p.TruncateTables(ctx, "outbox", "consent_audit")
}

// TruncateModuleTables truncates all module tables for full integration test isolation.
// Tables are truncated with CASCADE to handle foreign key dependencies.
func (p *PostgresContainer) TruncateModuleTables(ctx context.Context) error {
	return p.TruncateTables(ctx, "outbox", "consent_audit", "consents", "items", "parties")
}

// Exec runs a SQL statement and returns the result.
func (p *PostgresContainer) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.DB.ExecContext(ctx, query, args...)
}

// Query runs a SQL query and returns rows.
func (p *PostgresContainer) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return p.DB.QueryContext(ctx, query, args...)
}

// QueryRow runs a SQL query expected to return a single row.
func (p *PostgresContainer) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.DB.QueryRowContext(ctx, query, args...)
}

// CreateTestParty inserts a directory party and returns it.
// Fails the test if insertion fails.
func (p *PostgresContainer) CreateTestParty(ctx context.Context, t testing.TB, role models.Role) *models.Party {
	t.Helper()
	partyID := uuid.NewString()
	party := &models.Party{
		ID:     partyID,
		Name:   "Test " + string(role),
		Email:  "test-" + partyID + "@example.com",
		Role:   role,
		Active: true,
	}
	_, err := p.Exec(ctx, `
		INSERT INTO parties (id, name, email, public_key, role, active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, party.ID, party.Name, party.Email, party.PublicKey, string(party.Role), party.Active)
	if err != nil {
		t.Fatalf("CreateTestParty: %v", err)
	}
	return party
}

// CreateTestItem inserts an active inline item for the owner and returns it.
// Fails the test if insertion fails.
func (p *PostgresContainer) CreateTestItem(ctx context.Context, t testing.TB, ownerID id.OwnerID) *models.Item {
	t.Helper()
	item := &models.Item{
		ID:            id.ItemID(uuid.New()),
		OwnerID:       ownerID,
		Name:          "item-" + uuid.NewString()[:8],
		Type:          "text/plain",
		DeliveryMode:  models.DeliveryInline,
		EncryptedData: "ciphertext",
		IV:            "iv",
		Active:        true,
	}
	_, err := p.Exec(ctx, `
		INSERT INTO items (id, owner_id, name, type, delivery_mode, encrypted_data, encrypted_url, iv, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(item.ID), uuid.UUID(item.OwnerID), item.Name, item.Type, string(item.DeliveryMode),
		item.EncryptedData, item.EncryptedURL, item.IV, item.Active)
	if err != nil {
		t.Fatalf("CreateTestItem: %v", err)
	}
	return item
}
