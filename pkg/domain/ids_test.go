package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentbroker/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant at trust boundaries:
// "IDs must be non-empty, well-formed UUIDs".
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseItemID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseConsentID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("nil UUID parses and reports IsNil", func(t *testing.T) {
		id, err := ParseOwnerID(uuid.Nil.String())
		require.NoError(t, err)
		assert.True(t, id.IsNil())
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		raw := uuid.New()
		id, err := ParseRequesterID(raw.String())
		require.NoError(t, err)
		assert.Equal(t, RequesterID(raw), id)
		assert.Equal(t, raw.String(), id.String())
	})
}

func TestNewConsentID(t *testing.T) {
	a, b := NewConsentID(), NewConsentID()
	assert.False(t, a.IsNil())
	assert.NotEqual(t, a, b)
}

func TestConsentID_JSONRoundTripsAsString(t *testing.T) {
	raw := uuid.New()
	payload, err := json.Marshal(struct {
		ID ConsentID `json:"id"`
	}{ID: ConsentID(raw)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+raw.String()+`"}`, string(payload))

	var decoded struct {
		ID ConsentID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, ConsentID(raw), decoded.ID)
}
