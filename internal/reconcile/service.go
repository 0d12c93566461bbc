// Package reconcile mirrors owner activity changes from the directory onto
// consent records.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"consentbroker/internal/consent/metrics"
	"consentbroker/internal/platform/tracer"
	"consentbroker/internal/sentinel"
	id "consentbroker/pkg/domain"
	dErrors "consentbroker/pkg/domain-errors"
)

// RecordActivator flips the active flag on every consent of an owner.
type RecordActivator interface {
	SetActiveByOwner(ctx context.Context, ownerID id.OwnerID, active bool) (int, error)
}

// PartyActivator updates the owner's directory entry. The cached directory
// drops its cached copy as part of the write.
type PartyActivator interface {
	SetPartyActive(ctx context.Context, partyID string, active bool) error
}

// Result reports what a reconciliation changed.
type Result struct {
	OwnerID         id.OwnerID
	Active          bool
	ConsentsChanged int
}

type Service struct {
	records   RecordActivator
	directory PartyActivator
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
	logger    *slog.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func New(records RecordActivator, directory PartyActivator, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		records:   records,
		directory: directory,
		tracer:    tracer.NewNoop(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOwnerActive marks the owner active or inactive in the directory and on
// every consent of the owner. It is idempotent and writes no audit entry.
// The directory write goes first so a failed record update can be re-run.
func (s *Service) SetOwnerActive(ctx context.Context, ownerID id.OwnerID, active bool) (result *Result, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanReconcile, tracer.Bool(tracer.AttrOwnerActive, active))
	defer func() {
		span.End(err)
	}()
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner ID required")
	}

	if err := s.directory.SetPartyActive(ctx, ownerID.String(), active); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "owner not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "directory unavailable")
	}

	changed, err := s.records.SetActiveByOwner(ctx, ownerID, active)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "consent storage unavailable")
	}

	span.SetAttributes(tracer.Int(tracer.AttrRowsChanged, changed))
	if s.metrics != nil {
		s.metrics.AddReconciled(active, changed)
	}
	s.logger.InfoContext(ctx, "owner activity reconciled",
		"owner_id", ownerID.String(),
		"active", active,
		"consents_changed", changed,
	)
	return &Result{OwnerID: ownerID, Active: active, ConsentsChanged: changed}, nil
}
