// Package engine holds the consent lifecycle state machine.
//
// Every function here is pure: it takes the current record and an intent and
// returns the next record, the audit transition to record, and the verdict for
// the caller. Persistence and locking belong to the service layer.
//
// Expected business states (pending, expired, exhausted, ...) are verdicts, not
// errors. Errors are returned only for malformed input (CodeInvalidInput) and
// for actions that are not legal from the current status (CodeInvalidTransition).
package engine

import (
	"fmt"
	"time"

	"consentbroker/internal/consent/models"
	dErrors "consentbroker/pkg/domain-errors"
)

// ActorSystem marks transitions discovered by the engine itself rather than
// caused by a requester or owner.
const ActorSystem = "system"

// Intent is the action a caller wants to perform against an existing record.
type Intent string

const (
	// IntentAccess checks validity and, for inline delivery, consumes one access.
	IntentAccess Intent = "access"
	// IntentConsume re-checks validity and consumes one access after an
	// indirect retrieval succeeded.
	IntentConsume   Intent = "consume"
	IntentReRequest Intent = "re_request"
	IntentApprove   Intent = "approve"
	IntentReject    Intent = "reject"
	IntentRevoke    Intent = "revoke"
)

// Input carries everything the engine needs besides the record.
type Input struct {
	Intent   Intent
	Actor    string
	Now      time.Time
	Delivery models.DeliveryMode

	// Approval parameters, read only for IntentApprove.
	Count       int
	ValidUntil  *time.Time
	ReleasedKey string
}

// Transition describes the single audit entry a decision requires.
type Transition struct {
	Action   models.Action
	Actor    string
	Previous *models.Status
	Next     models.Status
	Remarks  string
	Extra    string
}

// Decision is the engine's answer for one intent.
type Decision struct {
	Verdict models.Verdict
	// Record is the record after the transition. When Changed is false it is
	// identical to the input record.
	Record  models.Record
	Changed bool
	// Transition is nil when nothing must be audited.
	Transition *Transition
	// Release reports whether the caller may hand out the item payload.
	Release bool
	// Observed is the access budget seen before any decrement.
	Observed int
}

// Request opens a new consent for a (item, requester) pair that had none.
// The shell must carry identity fields; lifecycle fields are overwritten.
func Request(shell models.Record, actor string, now time.Time) Decision {
	next := shell
	next.Status = models.StatusPending
	next.AccessCount = 1
	next.ValidUntil = models.UnboundedValidity
	next.Active = true
	next.CreatedAt = now
	next.UpdatedAt = now
	return Decision{
		Verdict: models.VerdictPending,
		Record:  next,
		Changed: true,
		Transition: &Transition{
			Action:  models.ActionRequest,
			Actor:   actor,
			Next:    models.StatusPending,
			Remarks: "access requested",
		},
		Observed: next.AccessCount,
	}
}

// Evaluate applies an intent to an existing record.
func Evaluate(rec models.Record, in Input) (Decision, error) {
	if !rec.Status.IsValid() {
		return Decision{}, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("unknown consent status %q", rec.Status))
	}
	switch in.Intent {
	case IntentAccess:
		return access(rec, in), nil
	case IntentConsume:
		return consume(rec, in), nil
	case IntentReRequest:
		return reRequest(rec, in)
	case IntentApprove:
		return approve(rec, in)
	case IntentReject:
		return reject(rec, in)
	case IntentRevoke:
		return revoke(rec, in)
	default:
		return Decision{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown intent %q", in.Intent))
	}
}

// Violation is the lazy-detection predicate: it reports the terminal status an
// approved record has silently reached by time or by count, if any.
// Expiry is checked before exhaustion.
func Violation(rec models.Record, now time.Time) (models.Status, bool) {
	if now.After(rec.ValidUntil) {
		return models.StatusExpired, true
	}
	if rec.AccessCount <= 0 {
		return models.StatusExhausted, true
	}
	return "", false
}

func access(rec models.Record, in Input) Decision {
	switch rec.Status {
	case models.StatusApproved:
		if dec, violated := detect(rec, in.Now); violated {
			return dec
		}
		if in.Delivery == models.DeliveryIndirect {
			// Reference only: the budget is consumed once retrieval succeeds.
			return Decision{
				Verdict:  models.VerdictGranted,
				Record:   rec,
				Release:  true,
				Observed: rec.AccessCount,
			}
		}
		return decrement(rec, in)
	case models.StatusPending:
		return unchanged(rec, models.VerdictPending)
	case models.StatusRejected, models.StatusRevoked, models.StatusExpired, models.StatusExhausted:
		// Only the first transition into a terminal state is audited.
		return unchanged(rec, models.VerdictDenied)
	default:
		return unchanged(rec, models.VerdictDenied)
	}
}

func consume(rec models.Record, in Input) Decision {
	switch rec.Status {
	case models.StatusApproved:
		if dec, violated := detect(rec, in.Now); violated {
			return dec
		}
		return decrement(rec, in)
	case models.StatusPending:
		return unchanged(rec, models.VerdictPending)
	case models.StatusRejected, models.StatusRevoked, models.StatusExpired, models.StatusExhausted:
		return unchanged(rec, models.VerdictDenied)
	default:
		return unchanged(rec, models.VerdictDenied)
	}
}

func reRequest(rec models.Record, in Input) (Decision, error) {
	switch rec.Status {
	case models.StatusRejected, models.StatusRevoked, models.StatusExpired, models.StatusExhausted:
		next := rec
		next.Status = models.StatusPending
		next.AccessCount = 1
		next.ValidUntil = models.UnboundedValidity
		next.UpdatedAt = in.Now
		return Decision{
			Verdict: models.VerdictPending,
			Record:  next,
			Changed: true,
			Transition: &Transition{
				Action:   models.ActionRequest,
				Actor:    in.Actor,
				Previous: rec.Status.Ptr(),
				Next:     models.StatusPending,
				Remarks:  "access re-requested",
			},
			Observed: rec.AccessCount,
		}, nil
	case models.StatusPending, models.StatusApproved:
		return Decision{}, invalidTransition(in.Intent, rec.Status)
	default:
		return Decision{}, invalidTransition(in.Intent, rec.Status)
	}
}

func approve(rec models.Record, in Input) (Decision, error) {
	if rec.Status != models.StatusPending {
		return Decision{}, invalidTransition(in.Intent, rec.Status)
	}
	if in.Count <= 0 {
		return Decision{}, dErrors.New(dErrors.CodeInvalidInput, "access count must be greater than zero")
	}
	validUntil := models.UnboundedValidity
	if in.ValidUntil != nil {
		if !in.ValidUntil.After(in.Now) {
			return Decision{}, dErrors.New(dErrors.CodeInvalidInput, "valid until must be in the future")
		}
		validUntil = in.ValidUntil.UTC()
	}
	next := rec
	next.Status = models.StatusApproved
	next.AccessCount = in.Count
	next.ValidUntil = validUntil
	if in.ReleasedKey != "" {
		next.ReleasedKey = in.ReleasedKey
	}
	next.UpdatedAt = in.Now
	return Decision{
		Verdict: models.VerdictGranted,
		Record:  next,
		Changed: true,
		Transition: &Transition{
			Action:   models.ActionApprove,
			Actor:    in.Actor,
			Previous: rec.Status.Ptr(),
			Next:     models.StatusApproved,
			Remarks:  "consent approved",
			Extra:    remaining(in.Count),
		},
		Observed: rec.AccessCount,
	}, nil
}

func reject(rec models.Record, in Input) (Decision, error) {
	if rec.Status != models.StatusPending {
		return Decision{}, invalidTransition(in.Intent, rec.Status)
	}
	return ownerTransition(rec, in, models.StatusRejected, models.ActionReject, "consent rejected"), nil
}

func revoke(rec models.Record, in Input) (Decision, error) {
	if rec.Status != models.StatusApproved {
		return Decision{}, invalidTransition(in.Intent, rec.Status)
	}
	return ownerTransition(rec, in, models.StatusRevoked, models.ActionRevoke, "consent revoked"), nil
}

func ownerTransition(rec models.Record, in Input, to models.Status, action models.Action, remarks string) Decision {
	next := rec
	next.Status = to
	next.UpdatedAt = in.Now
	return Decision{
		Verdict: models.VerdictDenied,
		Record:  next,
		Changed: true,
		Transition: &Transition{
			Action:   action,
			Actor:    in.Actor,
			Previous: rec.Status.Ptr(),
			Next:     to,
			Remarks:  remarks,
		},
		Observed: rec.AccessCount,
	}
}

// detect moves an approved record into its lazily discovered terminal state.
func detect(rec models.Record, now time.Time) (Decision, bool) {
	to, violated := Violation(rec, now)
	if !violated {
		return Decision{}, false
	}
	remarks := "validity elapsed"
	if to == models.StatusExhausted {
		remarks = "access count exhausted"
	}
	next := rec
	next.Status = to
	next.UpdatedAt = now
	return Decision{
		Verdict: models.VerdictDenied,
		Record:  next,
		Changed: true,
		Transition: &Transition{
			Action:   models.ActionExpire,
			Actor:    ActorSystem,
			Previous: rec.Status.Ptr(),
			Next:     to,
			Remarks:  remarks,
			Extra:    remaining(rec.AccessCount),
		},
		Observed: rec.AccessCount,
	}, true
}

func decrement(rec models.Record, in Input) Decision {
	next := rec
	next.AccessCount = rec.AccessCount - 1
	if next.AccessCount == 0 {
		next.Status = models.StatusExhausted
	}
	next.UpdatedAt = in.Now
	return Decision{
		Verdict: models.VerdictGranted,
		Record:  next,
		Changed: true,
		Transition: &Transition{
			Action:   models.ActionAccess,
			Actor:    in.Actor,
			Previous: rec.Status.Ptr(),
			Next:     next.Status,
			Remarks:  "access granted",
			Extra:    remaining(next.AccessCount),
		},
		Release:  true,
		Observed: rec.AccessCount,
	}
}

func unchanged(rec models.Record, verdict models.Verdict) Decision {
	return Decision{Verdict: verdict, Record: rec, Observed: rec.AccessCount}
}

func remaining(n int) string {
	return fmt.Sprintf("remaining_count=%d", n)
}

func invalidTransition(intent Intent, from models.Status) error {
	return dErrors.New(dErrors.CodeInvalidTransition, fmt.Sprintf("cannot %s consent in status %s", intentVerb(intent), from))
}

func intentVerb(intent Intent) string {
	switch intent {
	case IntentReRequest:
		return "re-request"
	default:
		return string(intent)
	}
}
