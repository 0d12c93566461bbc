package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentbroker/pkg/domain-errors"
)

type approval struct {
	Decision    string `json:"decision" validate:"required,oneof=approve reject revoke"`
	Count       int    `json:"count" validate:"gte=0,lte=1000"`
	ReleasedKey string `json:"releasedKey" validate:"omitempty,notblank"`
	ConsentID   string `validate:"required,uuid"`
}

func TestValidate(t *testing.T) {
	valid := approval{Decision: "approve", Count: 3, ConsentID: "7f1c1c7e-8f9a-4d55-9a77-2b3c8a2f0d11"}

	tests := []struct {
		name    string
		mutate  func(*approval)
		wantMsg string
	}{
		{"valid", func(*approval) {}, ""},
		{"missing decision", func(a *approval) { a.Decision = "" }, "decision is required"},
		{"unknown decision", func(a *approval) { a.Decision = "maybe" }, "decision must be one of [approve reject revoke]"},
		{"negative count", func(a *approval) { a.Count = -1 }, "count must be at least 0"},
		{"count too large", func(a *approval) { a.Count = 5000 }, "count must be at most 1000"},
		{"blank key", func(a *approval) { a.ReleasedKey = "   " }, "released_key must not be blank"},
		{"bad uuid", func(a *approval) { a.ConsentID = "nope" }, "consent_id must be a valid uuid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := Validate(req)
			if tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "released_key", toSnakeCase("ReleasedKey"))
	assert.Equal(t, "consent_id", toSnakeCase("ConsentID"))
	assert.Equal(t, "count", toSnakeCase("count"))
}
