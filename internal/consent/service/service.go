package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Directory,Fetcher,AuditReader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"consentbroker/internal/audit"
	"consentbroker/internal/consent/engine"
	"consentbroker/internal/consent/metrics"
	"consentbroker/internal/consent/models"
	"consentbroker/internal/consent/store"
	"consentbroker/internal/platform/tracer"
	"consentbroker/internal/sentinel"
	id "consentbroker/pkg/domain"
	dErrors "consentbroker/pkg/domain-errors"
)

// Directory resolves items and parties.
// Error Contract:
// - Return sentinel.ErrNotFound when the ID is unknown
// - Return wrapped errors for infrastructure failures
type Directory interface {
	GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	GetParty(ctx context.Context, partyID string) (*models.Party, error)
}

// Fetcher downloads the opaque content behind an indirect item reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// AuditReader is the read side of the audit log used by history projections.
type AuditReader interface {
	ListByConsents(ctx context.Context, consentIDs []id.ConsentID) ([]audit.Entry, error)
}

type Option func(*Service)

// Service is the consent access gate, grant administration and history
// projections. Every state change runs through the engine inside one unit
// of work together with its audit entry.
type Service struct {
	records   store.Store
	tx        ConsentStoreTx
	auditLog  AuditReader
	directory Directory
	fetcher   Fetcher
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
	logger    *slog.Logger
	now       func() time.Time
	newID     func() uuid.UUID
}

func New(records store.Store, tx ConsentStoreTx, auditLog AuditReader, directory Directory, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		records:   records,
		tx:        tx,
		auditLog:  auditLog,
		directory: directory,
		logger:    logger,
		tracer:    tracer.NewNoop(),
		now:       time.Now,
		newID:     uuid.New,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithMetrics sets the metrics instance for the service
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides the time source; tests use it to cross validity bounds.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithFetcher enables Retrieve for indirect items.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// translate maps store and collaborator errors onto domain codes. It is the
// only place sentinel errors become domain errors; domain errors pass through.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update on "+what+", retry")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, what+" operation timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, what+" storage unavailable")
	}
}

// resolveAccess loads the requester and item for an access-path call. Unknown
// or inactive parties and items, and items whose owner is inactive, are all
// reported as not found.
func (s *Service) resolveAccess(ctx context.Context, requesterID id.RequesterID, itemID id.ItemID) (*models.Item, error) {
	requester, err := s.directory.GetParty(ctx, requesterID.String())
	if err != nil {
		return nil, translate(err, "requester")
	}
	if !requester.Active || requester.Role != models.RoleSeeker {
		return nil, dErrors.New(dErrors.CodeNotFound, "requester not found")
	}
	item, err := s.directory.GetItem(ctx, itemID)
	if err != nil {
		return nil, translate(err, "item")
	}
	if !item.Active {
		return nil, dErrors.New(dErrors.CodeNotFound, "item not found")
	}
	owner, err := s.directory.GetParty(ctx, item.OwnerID.String())
	if err != nil {
		return nil, translate(err, "item")
	}
	if !owner.Active {
		return nil, dErrors.New(dErrors.CodeNotFound, "item not found")
	}
	return item, nil
}

// transitionTime reads the clock inside a unit of work, after the pair is
// locked, so audit timestamps follow commit order. It never falls behind the
// record's last change.
func (s *Service) transitionTime(rec *models.Record) time.Time {
	now := s.now().UTC()
	if rec != nil && now.Before(rec.UpdatedAt) {
		return rec.UpdatedAt
	}
	return now
}

// apply persists an engine decision and its audit entry inside tx.
func (s *Service) apply(ctx context.Context, tx TxStores, dec engine.Decision, created bool) error {
	if dec.Changed {
		rec := dec.Record
		var err error
		if created {
			err = tx.Records.Create(ctx, &rec)
		} else {
			err = tx.Records.Update(ctx, &rec)
		}
		if err != nil {
			return err
		}
	}
	if dec.Transition == nil {
		return nil
	}
	t := dec.Transition
	return tx.Audit.Append(ctx, audit.Entry{
		ID:             s.newID(),
		ConsentID:      dec.Record.ID,
		Actor:          t.Actor,
		PreviousStatus: t.Previous,
		NewStatus:      t.Next,
		Action:         t.Action,
		Timestamp:      dec.Record.UpdatedAt,
		Remarks:        t.Remarks,
		Extra:          t.Extra,
	})
}

// recordOutcome runs after a unit of work committed.
func (s *Service) recordOutcome(ctx context.Context, dec engine.Decision) {
	if dec.Transition == nil {
		return
	}
	t := dec.Transition
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(t.Action), string(t.Next))
	}
	if t.Actor == engine.ActorSystem {
		s.logger.InfoContext(ctx, "consent transitioned lazily",
			"consent_id", dec.Record.ID.String(),
			"previous_status", derefStatus(t.Previous),
			"new_status", t.Next,
			"remarks", t.Remarks,
		)
	}
}

// traceTransition marks a committed transition on the caller's span.
func traceTransition(span tracer.Span, dec engine.Decision) {
	t := dec.Transition
	if t == nil {
		return
	}
	span.AddEvent(tracer.EventAuditRecorded,
		tracer.String(tracer.AttrConsentID, dec.Record.ID.String()),
		tracer.String(tracer.AttrStatus, string(t.Next)),
	)
	if t.Actor == engine.ActorSystem {
		span.AddEvent(tracer.EventLazyTransition, tracer.String(tracer.AttrStatus, string(t.Next)))
	}
}

func (s *Service) countConflict(err error, operation string) {
	if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeConflict) {
		s.metrics.IncrementConflict(operation)
	}
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, start)
	}
}

func derefStatus(st *models.Status) string {
	if st == nil {
		return ""
	}
	return string(*st)
}

func accessResult(item *models.Item, dec engine.Decision) *models.AccessResult {
	rec := dec.Record
	res := &models.AccessResult{
		ConsentID:    rec.ID,
		Verdict:      dec.Verdict,
		Status:       rec.Status,
		ItemID:       item.ID,
		ItemName:     item.Name,
		ItemType:     item.Type,
		DeliveryMode: item.DeliveryMode,
		AccessCount:  dec.Observed,
		ValidUntil:   rec.ValidUntil,
	}
	if dec.Release {
		res.Payload = &models.Payload{
			ReleasedKey: rec.ReleasedKey,
			IV:          item.IV,
		}
		if item.DeliveryMode == models.DeliveryIndirect {
			res.Payload.EncryptedURL = item.EncryptedURL
		} else {
			res.Payload.EncryptedData = item.EncryptedData
		}
	}
	return res
}

func errUnsupported(format string, args ...any) error {
	return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf(format, args...))
}
