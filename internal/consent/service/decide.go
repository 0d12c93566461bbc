package service

import (
	"context"
	"slices"
	"time"

	"consentbroker/internal/consent/engine"
	"consentbroker/internal/consent/models"
	"consentbroker/internal/consent/store"
	"consentbroker/internal/platform/tracer"
	id "consentbroker/pkg/domain"
	dErrors "consentbroker/pkg/domain-errors"
)

var decisionIntents = map[models.Decision]engine.Intent{
	models.DecisionApprove: engine.IntentApprove,
	models.DecisionReject:  engine.IntentReject,
	models.DecisionRevoke:  engine.IntentRevoke,
}

// Decide applies an owner's approve, reject or revoke to a consent they own.
func (s *Service) Decide(ctx context.Context, ownerID id.OwnerID, consentID id.ConsentID, params models.DecideParams) (result *models.DecideResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanDecide,
		tracer.String(tracer.AttrConsentID, consentID.String()),
		tracer.String(tracer.AttrDecision, string(params.Decision)),
	)
	defer func() {
		span.End(err)
		s.observe("decide", start)
	}()

	intent, ok := decisionIntents[params.Decision]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "decision must be one of approve, reject, revoke")
	}

	// Unlocked read to find the pair; ownership is re-checked under the lock.
	current, err := s.records.FindByID(ctx, consentID)
	if err != nil {
		return nil, translate(err, "consent")
	}
	if err := checkOwnership(current, ownerID); err != nil {
		return nil, err
	}

	var dec engine.Decision
	err = s.tx.RunInTx(ctx, store.PairKey(current.ItemID, current.RequesterID), func(tx TxStores) error {
		rec, err := tx.Records.FindByID(ctx, consentID)
		if err != nil {
			return err
		}
		if err := checkOwnership(rec, ownerID); err != nil {
			return err
		}
		dec, err = engine.Evaluate(*rec, engine.Input{
			Intent:      intent,
			Actor:       ownerID.String(),
			Now:         s.transitionTime(rec),
			Count:       params.Count,
			ValidUntil:  params.ValidUntil,
			ReleasedKey: params.ReleasedKey,
		})
		if err != nil {
			return err
		}
		return s.apply(ctx, tx, dec, false)
	})
	if err != nil {
		err = translate(err, "consent")
		s.countConflict(err, "decide")
		return nil, err
	}

	s.recordOutcome(ctx, dec)
	traceTransition(span, dec)
	if s.metrics != nil {
		s.metrics.IncrementDecision(string(params.Decision))
	}
	s.logger.InfoContext(ctx, "owner decision applied",
		"consent_id", consentID.String(),
		"decision", params.Decision,
		"status", dec.Record.Status,
	)
	return &models.DecideResult{
		ConsentID:   dec.Record.ID,
		Status:      dec.Record.Status,
		AccessCount: dec.Record.AccessCount,
		ValidUntil:  dec.Record.ValidUntil,
	}, nil
}

// checkOwnership hides inactive consents and rejects other owners.
func checkOwnership(rec *models.Record, ownerID id.OwnerID) error {
	if !rec.Active {
		return dErrors.New(dErrors.CodeNotFound, "consent not found")
	}
	if rec.OwnerID != ownerID {
		return dErrors.New(dErrors.CodeForbidden, "consent belongs to another owner")
	}
	return nil
}

// ListPendingForOwner lists the owner's active pending consents, newest
// request first, with seeker and item details.
func (s *Service) ListPendingForOwner(ctx context.Context, ownerID id.OwnerID) (result []models.PendingConsent, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanPending)
	defer func() {
		span.End(err)
		s.observe("pending", start)
	}()

	records, err := s.records.ListPendingByOwner(ctx, ownerID)
	if err != nil {
		return nil, translate(err, "consent")
	}

	lookup := newLookups(s.directory)
	result = make([]models.PendingConsent, 0, len(records))
	for _, rec := range records {
		item, err := lookup.item(ctx, rec.ItemID)
		if err != nil {
			return nil, err
		}
		requester, err := lookup.party(ctx, rec.RequesterID.String())
		if err != nil {
			return nil, err
		}
		result = append(result, models.PendingConsent{
			ConsentID:       rec.ID,
			ItemID:          rec.ItemID,
			ItemName:        item.Name,
			ItemType:        item.Type,
			RequesterID:     rec.RequesterID,
			RequesterName:   requester.Name,
			RequesterEmail:  requester.Email,
			RequesterPubKey: requester.PublicKey,
			RequestedAt:     rec.UpdatedAt,
		})
	}
	slices.SortStableFunc(result, func(a, b models.PendingConsent) int {
		return b.RequestedAt.Compare(a.RequestedAt)
	})
	return result, nil
}
