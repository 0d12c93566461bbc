package handler

import (
	"fmt"
	"strings"
	"time"

	"consentbroker/internal/consent/models"
	dErrors "consentbroker/pkg/domain-errors"
	"consentbroker/pkg/validation"
)

// DecisionRequest is an owner's approve, reject or revoke.
type DecisionRequest struct {
	Decision    string     `json:"decision" validate:"required,oneof=approve reject revoke"`
	AccessCount *int       `json:"access_count,omitempty" validate:"omitempty,gte=1"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
	ReleasedKey string     `json:"released_key,omitempty"`
}

// Normalize trims inputs and lowercases the decision.
func (r *DecisionRequest) Normalize() {
	if r == nil {
		return
	}
	r.Decision = strings.ToLower(strings.TrimSpace(r.Decision))
	r.ReleasedKey = strings.TrimSpace(r.ReleasedKey)
}

// Validate checks the request shape. Whether a valid_until is in the future
// is decided against the service clock, not here.
func (r *DecisionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	if models.Decision(r.Decision) != models.DecisionApprove {
		if r.AccessCount != nil || r.ValidUntil != nil || r.ReleasedKey != "" {
			return dErrors.New(dErrors.CodeValidation, "access_count, valid_until and released_key apply to approve only")
		}
		return nil
	}
	if r.AccessCount == nil {
		return dErrors.New(dErrors.CodeValidation, "access_count is required")
	}
	if *r.AccessCount > validation.MaxAccessCount {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("access_count must be at most %d", validation.MaxAccessCount))
	}
	if len(r.ReleasedKey) > validation.MaxReleasedKeyLength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("released_key must be at most %d bytes", validation.MaxReleasedKeyLength))
	}
	return nil
}

func (r *DecisionRequest) ToParams() models.DecideParams {
	params := models.DecideParams{
		Decision:    models.Decision(r.Decision),
		ValidUntil:  r.ValidUntil,
		ReleasedKey: r.ReleasedKey,
	}
	if r.AccessCount != nil {
		params.Count = *r.AccessCount
	}
	return params
}
