package service

import (
	"context"
	"errors"
	"net/url"
	"time"

	"consentbroker/internal/consent/engine"
	"consentbroker/internal/consent/models"
	"consentbroker/internal/consent/store"
	"consentbroker/internal/platform/tracer"
	"consentbroker/internal/sentinel"
	id "consentbroker/pkg/domain"
	dErrors "consentbroker/pkg/domain-errors"
)

// AttemptAccess is a seeker's access attempt on an item. The first attempt
// for a pair opens a pending consent; later attempts run the lazy validity
// checks and, when the grant holds, release the payload. Pending and denied
// outcomes are results, not errors.
func (s *Service) AttemptAccess(ctx context.Context, requesterID id.RequesterID, itemID id.ItemID) (result *models.AccessResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanAccess, tracer.String(tracer.AttrItemID, itemID.String()))
	defer func() {
		span.End(err)
		s.observe("access", start)
	}()

	item, err := s.resolveAccess(ctx, requesterID, itemID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrDeliveryMode, string(item.DeliveryMode)))

	actor := requesterID.String()
	var dec engine.Decision
	unit := func(tx TxStores) error {
		rec, err := tx.Records.FindByPair(ctx, itemID, requesterID)
		if errors.Is(err, sentinel.ErrNotFound) {
			shell, err := models.NewRecord(id.NewConsentID(), itemID, requesterID, item.OwnerID)
			if err != nil {
				return err
			}
			dec = engine.Request(*shell, actor, s.transitionTime(nil))
			return s.apply(ctx, tx, dec, true)
		}
		if err != nil {
			return err
		}
		if !rec.Active {
			return dErrors.New(dErrors.CodeNotFound, "consent not found")
		}
		dec, err = engine.Evaluate(*rec, engine.Input{
			Intent:   engine.IntentAccess,
			Actor:    actor,
			Now:      s.transitionTime(rec),
			Delivery: item.DeliveryMode,
		})
		if err != nil {
			return err
		}
		return s.apply(ctx, tx, dec, false)
	}

	key := store.PairKey(itemID, requesterID)
	err = s.tx.RunInTx(ctx, key, unit)
	if errors.Is(err, sentinel.ErrConflict) && dec.Transition != nil && dec.Transition.Previous == nil {
		// Lost the race to open the pair; the winner's record now exists.
		err = s.tx.RunInTx(ctx, key, unit)
	}
	if err != nil {
		err = translate(err, "consent")
		s.countConflict(err, "access")
		return nil, err
	}

	s.recordOutcome(ctx, dec)
	traceTransition(span, dec)
	if s.metrics != nil {
		s.metrics.IncrementAccessAttempt(string(item.DeliveryMode), string(dec.Verdict))
	}
	span.SetAttributes(
		tracer.String(tracer.AttrConsentID, dec.Record.ID.String()),
		tracer.String(tracer.AttrVerdict, string(dec.Verdict)),
		tracer.String(tracer.AttrStatus, string(dec.Record.Status)),
	)
	return accessResult(item, dec), nil
}

// ReRequest reopens a rejected, revoked, expired or exhausted consent as
// pending with a fresh budget of one and unbounded validity.
func (s *Service) ReRequest(ctx context.Context, requesterID id.RequesterID, itemID id.ItemID) (result *models.AccessResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanReRequest, tracer.String(tracer.AttrItemID, itemID.String()))
	defer func() {
		span.End(err)
		s.observe("rerequest", start)
	}()

	item, err := s.resolveAccess(ctx, requesterID, itemID)
	if err != nil {
		return nil, err
	}

	var dec engine.Decision
	err = s.tx.RunInTx(ctx, store.PairKey(itemID, requesterID), func(tx TxStores) error {
		rec, err := tx.Records.FindByPair(ctx, itemID, requesterID)
		if err != nil {
			return err
		}
		if !rec.Active {
			return dErrors.New(dErrors.CodeNotFound, "consent not found")
		}
		dec, err = engine.Evaluate(*rec, engine.Input{
			Intent: engine.IntentReRequest,
			Actor:  requesterID.String(),
			Now:    s.transitionTime(rec),
		})
		if err != nil {
			return err
		}
		return s.apply(ctx, tx, dec, false)
	})
	if err != nil {
		err = translate(err, "consent")
		s.countConflict(err, "rerequest")
		return nil, err
	}

	s.recordOutcome(ctx, dec)
	traceTransition(span, dec)
	return accessResult(item, dec), nil
}

// Retrieve downloads the content of an indirect item for a seeker holding a
// grant. The first unit of work re-runs the lazy checks, the fetch happens
// outside any lock, and the second unit of work consumes one access. A failed
// fetch leaves the grant untouched.
func (s *Service) Retrieve(ctx context.Context, requesterID id.RequesterID, itemID id.ItemID) (result *models.RetrievalResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanRetrieve, tracer.String(tracer.AttrItemID, itemID.String()))
	defer func() {
		span.End(err)
		s.observe("retrieve", start)
	}()

	if s.fetcher == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "content retrieval is not configured")
	}
	item, err := s.resolveAccess(ctx, requesterID, itemID)
	if err != nil {
		return nil, err
	}
	if item.DeliveryMode != models.DeliveryIndirect {
		return nil, errUnsupported("item %s is delivered inline; use the access response", item.ID)
	}

	key := store.PairKey(itemID, requesterID)
	actor := requesterID.String()

	// Unit of work 1: lazy checks only.
	check, err := s.evaluatePair(ctx, key, itemID, requesterID, engine.Input{
		Intent:   engine.IntentAccess,
		Actor:    actor,
		Delivery: item.DeliveryMode,
	})
	if err != nil {
		s.countConflict(err, "retrieve")
		return nil, err
	}
	traceTransition(span, check)
	if check.Verdict != models.VerdictGranted {
		return retrievalResult(item, check, nil), nil
	}

	content, err := s.fetch(ctx, item)
	if err != nil {
		return nil, err
	}

	// Unit of work 2: re-evaluate and consume.
	consumed, err := s.evaluatePair(ctx, key, itemID, requesterID, engine.Input{
		Intent:   engine.IntentConsume,
		Actor:    actor,
		Delivery: item.DeliveryMode,
	})
	if err != nil {
		s.countConflict(err, "retrieve")
		return nil, err
	}
	traceTransition(span, consumed)
	if consumed.Verdict != models.VerdictGranted {
		// Exhausted, expired or revoked while the fetch was in flight.
		return retrievalResult(item, consumed, nil), nil
	}
	span.SetAttributes(tracer.String(tracer.AttrConsentID, consumed.Record.ID.String()))
	return retrievalResult(item, consumed, content), nil
}

// evaluatePair runs one engine intent against an existing pair in its own
// unit of work and records the outcome after commit. in.Now is stamped under
// the pair lock.
func (s *Service) evaluatePair(ctx context.Context, key string, itemID id.ItemID, requesterID id.RequesterID, in engine.Input) (engine.Decision, error) {
	var dec engine.Decision
	err := s.tx.RunInTx(ctx, key, func(tx TxStores) error {
		rec, err := tx.Records.FindByPair(ctx, itemID, requesterID)
		if err != nil {
			return err
		}
		if !rec.Active {
			return dErrors.New(dErrors.CodeNotFound, "consent not found")
		}
		in.Now = s.transitionTime(rec)
		dec, err = engine.Evaluate(*rec, in)
		if err != nil {
			return err
		}
		return s.apply(ctx, tx, dec, false)
	})
	if err != nil {
		return engine.Decision{}, translate(err, "consent")
	}
	s.recordOutcome(ctx, dec)
	return dec, nil
}

func (s *Service) fetch(ctx context.Context, item *models.Item) ([]byte, error) {
	scheme := refScheme(item.EncryptedURL)
	ctx, span := s.tracer.Start(ctx, tracer.SpanBlobFetch, tracer.String(tracer.AttrBlobScheme, scheme))
	fetchStart := time.Now()
	content, err := s.fetcher.Fetch(ctx, item.EncryptedURL)
	span.End(err)
	if s.metrics != nil {
		s.metrics.ObserveBlobFetch(scheme, time.Since(fetchStart), err)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "indirect content fetch failed",
			"item_id", item.ID.String(),
			"scheme", scheme,
			"error", err,
		)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "item content is missing from storage")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "item content unavailable, retry")
	}
	return content, nil
}

func refScheme(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" {
		return "unknown"
	}
	return u.Scheme
}

func retrievalResult(item *models.Item, dec engine.Decision, content []byte) *models.RetrievalResult {
	res := &models.RetrievalResult{
		ConsentID:      dec.Record.ID,
		Verdict:        dec.Verdict,
		Status:         dec.Record.Status,
		ItemName:       item.Name,
		ItemType:       item.Type,
		RemainingCount: dec.Record.AccessCount,
	}
	if content != nil {
		res.Content = content
		res.ReleasedKey = dec.Record.ReleasedKey
		res.IV = item.IV
	}
	return res
}
