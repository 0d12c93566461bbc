package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"consentbroker/internal/audit"
	"consentbroker/internal/consent/metrics"
	"consentbroker/internal/consent/store"
	"consentbroker/internal/platform/database"
	"consentbroker/internal/sentinel"
	dErrors "consentbroker/pkg/domain-errors"
	platformsync "consentbroker/pkg/platform/sync"
)

// AuditAppender is the write side of the audit log inside a unit of work.
type AuditAppender interface {
	Append(ctx context.Context, entry audit.Entry) error
}

// TxStores are the stores bound to one unit of work. Writes through them
// become visible together or not at all.
type TxStores struct {
	Records store.TxStore
	Audit   AuditAppender
}

// ConsentStoreTx runs fn as one unit of work. key names the consent pair the
// work touches; implementations that lock in-process serialize on it.
type ConsentStoreTx interface {
	RunInTx(ctx context.Context, key string, fn func(tx TxStores) error) error
}

// defaultConsentTxTimeout is the maximum duration for a consent transaction.
const defaultConsentTxTimeout = 5 * time.Second

func withTxTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultConsentTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func txAborted(err error) error {
	return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
}

// MemoryTx serializes units of work per pair with a sharded mutex and stages
// record and audit writes until fn returns. Records commit first with a
// version re-check; the audit entries follow only when that succeeds.
type MemoryTx struct {
	mu      *platformsync.ShardedMutex
	records *store.InMemoryStore
	audit   *audit.InMemoryStore
	timeout time.Duration
	metrics *metrics.Metrics
}

// MemoryTxOption configures a MemoryTx.
type MemoryTxOption func(*MemoryTx)

func WithMemoryTxTimeout(d time.Duration) MemoryTxOption {
	return func(t *MemoryTx) { t.timeout = d }
}

func WithMemoryTxMetrics(m *metrics.Metrics) MemoryTxOption {
	return func(t *MemoryTx) { t.metrics = m }
}

func NewMemoryTx(records *store.InMemoryStore, auditLog *audit.InMemoryStore, opts ...MemoryTxOption) *MemoryTx {
	t := &MemoryTx{
		mu:      platformsync.NewShardedMutex(),
		records: records,
		audit:   auditLog,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *MemoryTx) RunInTx(ctx context.Context, key string, fn func(tx TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return txAborted(err)
	}
	ctx, cancel := withTxTimeout(ctx, t.timeout)
	defer cancel()

	lockStart := time.Now()
	t.mu.Lock(key)
	defer t.mu.Unlock(key)
	if t.metrics != nil {
		t.metrics.ObserveLockWait(time.Since(lockStart))
	}

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return txAborted(err)
	}

	recordTx := t.records.Begin()
	auditTx := t.audit.Begin()
	if err := fn(TxStores{Records: recordTx, Audit: auditTx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return txAborted(err)
	}
	if err := recordTx.Commit(); err != nil {
		return err
	}
	auditTx.Commit()
	return nil
}

// PostgresTx runs each unit of work in one database transaction. Row locks
// taken by the tx-bound store replace the in-process pair lock.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresTx(db *sql.DB, timeout time.Duration) *PostgresTx {
	return &PostgresTx{db: db, timeout: timeout}
}

func (t *PostgresTx) RunInTx(ctx context.Context, _ string, fn func(tx TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return txAborted(err)
	}
	ctx, cancel := withTxTimeout(ctx, t.timeout)
	defer cancel()

	err := database.InTx(ctx, t.db, func(tx *sql.Tx) error {
		return fn(TxStores{
			Records: store.NewPostgresTx(tx),
			Audit:   audit.NewPostgresTx(tx),
		})
	})
	if isSerializationFailure(err) {
		return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
	}
	return err
}

// isSerializationFailure matches serialization_failure and deadlock_detected.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

var (
	_ ConsentStoreTx = (*MemoryTx)(nil)
	_ ConsentStoreTx = (*PostgresTx)(nil)
)
