package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentbroker/internal/consent/models"
	id "consentbroker/pkg/domain"
	dErrors "consentbroker/pkg/domain-errors"
)

var (
	testNow   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testOwner = "owner-1"
	testSeek  = "seeker-1"
)

func shell() models.Record {
	return models.Record{
		ID:          id.NewConsentID(),
		ItemID:      id.ItemID(id.NewConsentID()),
		RequesterID: id.RequesterID(id.NewConsentID()),
		OwnerID:     id.OwnerID(id.NewConsentID()),
	}
}

func recordIn(status models.Status, count int, validUntil time.Time) models.Record {
	rec := shell()
	rec.Status = status
	rec.AccessCount = count
	rec.ValidUntil = validUntil
	rec.Active = true
	return rec
}

// TestRequest verifies the opening transition.
// Invariant: first access yields pending, count 1, unbounded validity, and one
// request entry with no previous status.
func TestRequest(t *testing.T) {
	dec := Request(shell(), testSeek, testNow)

	assert.Equal(t, models.VerdictPending, dec.Verdict)
	assert.True(t, dec.Changed)
	assert.Equal(t, models.StatusPending, dec.Record.Status)
	assert.Equal(t, 1, dec.Record.AccessCount)
	assert.Equal(t, models.UnboundedValidity, dec.Record.ValidUntil)
	assert.Equal(t, testNow, dec.Record.CreatedAt)
	require.NotNil(t, dec.Transition)
	assert.Equal(t, models.ActionRequest, dec.Transition.Action)
	assert.Nil(t, dec.Transition.Previous)
	assert.Equal(t, testSeek, dec.Transition.Actor)
	assert.False(t, dec.Release)
}

func TestEvaluate_Access(t *testing.T) {
	future := testNow.Add(24 * time.Hour)
	past := testNow.Add(-time.Minute)

	tests := []struct {
		name        string
		rec         models.Record
		delivery    models.DeliveryMode
		wantVerdict models.Verdict
		wantStatus  models.Status
		wantCount   int
		wantAction  models.Action // empty means no audit entry
		wantRelease bool
	}{
		{"inline grant decrements", recordIn(models.StatusApproved, 2, future), models.DeliveryInline,
			models.VerdictGranted, models.StatusApproved, 1, models.ActionAccess, true},
		{"inline grant of last access exhausts", recordIn(models.StatusApproved, 1, future), models.DeliveryInline,
			models.VerdictGranted, models.StatusExhausted, 0, models.ActionAccess, true},
		{"indirect grant does not decrement", recordIn(models.StatusApproved, 1, future), models.DeliveryIndirect,
			models.VerdictGranted, models.StatusApproved, 1, "", true},
		{"elapsed validity expires lazily", recordIn(models.StatusApproved, 3, past), models.DeliveryInline,
			models.VerdictDenied, models.StatusExpired, 3, models.ActionExpire, false},
		{"zero count exhausts lazily", recordIn(models.StatusApproved, 0, future), models.DeliveryIndirect,
			models.VerdictDenied, models.StatusExhausted, 0, models.ActionExpire, false},
		{"expiry wins over exhaustion", recordIn(models.StatusApproved, 0, past), models.DeliveryInline,
			models.VerdictDenied, models.StatusExpired, 0, models.ActionExpire, false},
		{"pending stays pending", recordIn(models.StatusPending, 1, models.UnboundedValidity), models.DeliveryInline,
			models.VerdictPending, models.StatusPending, 1, "", false},
		{"repeat on exhausted is silent", recordIn(models.StatusExhausted, 0, future), models.DeliveryInline,
			models.VerdictDenied, models.StatusExhausted, 0, "", false},
		{"repeat on expired is silent", recordIn(models.StatusExpired, 2, past), models.DeliveryIndirect,
			models.VerdictDenied, models.StatusExpired, 2, "", false},
		{"revoked denies", recordIn(models.StatusRevoked, 2, future), models.DeliveryInline,
			models.VerdictDenied, models.StatusRevoked, 2, "", false},
		{"rejected denies", recordIn(models.StatusRejected, 1, models.UnboundedValidity), models.DeliveryInline,
			models.VerdictDenied, models.StatusRejected, 1, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := Evaluate(tt.rec, Input{Intent: IntentAccess, Actor: testSeek, Now: testNow, Delivery: tt.delivery})
			require.NoError(t, err)
			assert.Equal(t, tt.wantVerdict, dec.Verdict)
			assert.Equal(t, tt.wantStatus, dec.Record.Status)
			assert.Equal(t, tt.wantCount, dec.Record.AccessCount)
			assert.Equal(t, tt.wantRelease, dec.Release)
			assert.Equal(t, tt.rec.AccessCount, dec.Observed)
			if tt.wantAction == "" {
				assert.Nil(t, dec.Transition)
				assert.False(t, dec.Changed)
				return
			}
			require.NotNil(t, dec.Transition)
			assert.True(t, dec.Changed)
			assert.Equal(t, tt.wantAction, dec.Transition.Action)
			assert.Equal(t, tt.rec.Status, *dec.Transition.Previous)
			assert.Equal(t, tt.wantStatus, dec.Transition.Next)
		})
	}
}

// TestEvaluate_LazyDetectionActor verifies lazily discovered transitions are
// attributed to the system, not to the requester whose call revealed them.
func TestEvaluate_LazyDetectionActor(t *testing.T) {
	dec, err := Evaluate(recordIn(models.StatusApproved, 1, testNow.Add(-time.Second)),
		Input{Intent: IntentAccess, Actor: testSeek, Now: testNow, Delivery: models.DeliveryInline})
	require.NoError(t, err)
	require.NotNil(t, dec.Transition)
	assert.Equal(t, ActorSystem, dec.Transition.Actor)
	assert.Equal(t, "remaining_count=1", dec.Transition.Extra)
}

func TestEvaluate_Consume(t *testing.T) {
	t.Run("consumes after retrieval", func(t *testing.T) {
		dec, err := Evaluate(recordIn(models.StatusApproved, 1, testNow.Add(time.Hour)),
			Input{Intent: IntentConsume, Actor: testSeek, Now: testNow, Delivery: models.DeliveryIndirect})
		require.NoError(t, err)
		assert.Equal(t, models.VerdictGranted, dec.Verdict)
		assert.Equal(t, models.StatusExhausted, dec.Record.Status)
		assert.Equal(t, models.ActionAccess, dec.Transition.Action)
		assert.Equal(t, "remaining_count=0", dec.Transition.Extra)
	})

	t.Run("lost race to exhaustion is denied without entry", func(t *testing.T) {
		dec, err := Evaluate(recordIn(models.StatusExhausted, 0, testNow.Add(time.Hour)),
			Input{Intent: IntentConsume, Actor: testSeek, Now: testNow})
		require.NoError(t, err)
		assert.Equal(t, models.VerdictDenied, dec.Verdict)
		assert.Nil(t, dec.Transition)
	})
}

func TestEvaluate_ReRequest(t *testing.T) {
	for _, from := range []models.Status{models.StatusRejected, models.StatusRevoked, models.StatusExpired, models.StatusExhausted} {
		t.Run("accepted from "+from.String(), func(t *testing.T) {
			rec := recordIn(from, 0, testNow.Add(-time.Hour))
			dec, err := Evaluate(rec, Input{Intent: IntentReRequest, Actor: testSeek, Now: testNow})
			require.NoError(t, err)
			assert.Equal(t, models.StatusPending, dec.Record.Status)
			assert.Equal(t, 1, dec.Record.AccessCount)
			assert.Equal(t, models.UnboundedValidity, dec.Record.ValidUntil)
			assert.Equal(t, models.ActionRequest, dec.Transition.Action)
			assert.Equal(t, from, *dec.Transition.Previous)
		})
	}

	for _, from := range []models.Status{models.StatusPending, models.StatusApproved} {
		t.Run("rejected from "+from.String(), func(t *testing.T) {
			_, err := Evaluate(recordIn(from, 1, models.UnboundedValidity), Input{Intent: IntentReRequest, Actor: testSeek, Now: testNow})
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		})
	}
}

func TestEvaluate_Approve(t *testing.T) {
	pending := recordIn(models.StatusPending, 1, models.UnboundedValidity)

	t.Run("sets count validity and key", func(t *testing.T) {
		until := testNow.Add(24 * time.Hour)
		dec, err := Evaluate(pending, Input{Intent: IntentApprove, Actor: testOwner, Now: testNow, Count: 2, ValidUntil: &until, ReleasedKey: "wrapped-key"})
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, dec.Record.Status)
		assert.Equal(t, 2, dec.Record.AccessCount)
		assert.Equal(t, until, dec.Record.ValidUntil)
		assert.Equal(t, "wrapped-key", dec.Record.ReleasedKey)
		assert.Equal(t, models.ActionApprove, dec.Transition.Action)
	})

	t.Run("absent validity stays unbounded", func(t *testing.T) {
		dec, err := Evaluate(pending, Input{Intent: IntentApprove, Actor: testOwner, Now: testNow, Count: 1})
		require.NoError(t, err)
		assert.Equal(t, models.UnboundedValidity, dec.Record.ValidUntil)
	})

	t.Run("non-positive count is invalid input", func(t *testing.T) {
		_, err := Evaluate(pending, Input{Intent: IntentApprove, Actor: testOwner, Now: testNow, Count: 0})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("past validity is invalid input", func(t *testing.T) {
		past := testNow.Add(-time.Hour)
		_, err := Evaluate(pending, Input{Intent: IntentApprove, Actor: testOwner, Now: testNow, Count: 1, ValidUntil: &past})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("non-pending is invalid transition", func(t *testing.T) {
		for _, from := range []models.Status{models.StatusApproved, models.StatusRejected, models.StatusRevoked, models.StatusExpired, models.StatusExhausted} {
			_, err := Evaluate(recordIn(from, 1, models.UnboundedValidity), Input{Intent: IntentApprove, Actor: testOwner, Now: testNow, Count: 1})
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), "approve from %s", from)
		}
	})
}

func TestEvaluate_RejectRevoke(t *testing.T) {
	dec, err := Evaluate(recordIn(models.StatusPending, 1, models.UnboundedValidity), Input{Intent: IntentReject, Actor: testOwner, Now: testNow})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, dec.Record.Status)

	_, err = Evaluate(recordIn(models.StatusApproved, 1, models.UnboundedValidity), Input{Intent: IntentReject, Actor: testOwner, Now: testNow})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	dec, err = Evaluate(recordIn(models.StatusApproved, 1, models.UnboundedValidity), Input{Intent: IntentRevoke, Actor: testOwner, Now: testNow})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevoked, dec.Record.Status)
	assert.Equal(t, models.ActionRevoke, dec.Transition.Action)

	_, err = Evaluate(recordIn(models.StatusPending, 1, models.UnboundedValidity), Input{Intent: IntentRevoke, Actor: testOwner, Now: testNow})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func TestEvaluate_RejectsUnknownInput(t *testing.T) {
	_, err := Evaluate(recordIn("archived", 1, models.UnboundedValidity), Input{Intent: IntentAccess, Now: testNow})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = Evaluate(recordIn(models.StatusPending, 1, models.UnboundedValidity), Input{Intent: "delete", Now: testNow})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
