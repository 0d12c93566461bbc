package models

import (
	"time"

	id "consentbroker/pkg/domain"
	dErrors "consentbroker/pkg/domain-errors"
)

// Record is the current state of one (item, requester) consent relationship.
//
// # Scoping Invariant
//
// There is at most one Record per (ItemID, RequesterID). OwnerID is copied from
// the item when the record is created and never changes afterwards, so owner
// checks never need to consult the item again.
//
// Records are never deleted. Terminal states keep the row for audit linkage and
// for re-request.
type Record struct {
	ID          id.ConsentID
	ItemID      id.ItemID
	RequesterID id.RequesterID
	OwnerID     id.OwnerID
	Status      Status
	AccessCount int
	ValidUntil  time.Time
	ReleasedKey string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// Version increments on every persisted write and guards conditional updates.
	Version int64
}

// NewRecord creates a Record shell with identity fields checked. Lifecycle
// fields are filled in by the engine's request transition.
func NewRecord(consentID id.ConsentID, itemID id.ItemID, requesterID id.RequesterID, ownerID id.OwnerID) (*Record, error) {
	if consentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consent ID required")
	}
	if itemID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "item ID required")
	}
	if requesterID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requester ID required")
	}
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner ID required")
	}
	return &Record{
		ID:          consentID,
		ItemID:      itemID,
		RequesterID: requesterID,
		OwnerID:     ownerID,
		Active:      true,
	}, nil
}

// HasBoundedValidity reports whether the owner set a real validity bound.
func (r Record) HasBoundedValidity() bool {
	return !IsUnbounded(r.ValidUntil)
}

// Item is the directory view of a protected item.
// Ciphertext and reference fields are opaque and relayed untouched.
type Item struct {
	ID            id.ItemID
	OwnerID       id.OwnerID
	Name          string
	Type          string
	DeliveryMode  DeliveryMode
	EncryptedData string // inline payload
	EncryptedURL  string // indirect reference, e.g. s3://bucket/key
	IV            string
	Active        bool
}

// Party is the directory view of a provider or seeker.
type Party struct {
	ID        string
	Name      string
	Email     string
	PublicKey string
	Role      Role
	Active    bool
}

// Verdict is the caller-facing outcome of an access attempt.
type Verdict string

const (
	VerdictGranted Verdict = "granted"
	VerdictPending Verdict = "pending"
	VerdictDenied  Verdict = "denied"
)

// Payload is released only on a granted access.
type Payload struct {
	EncryptedData string `json:"encrypted_data,omitempty"`
	EncryptedURL  string `json:"encrypted_url,omitempty"`
	ReleasedKey   string `json:"released_key,omitempty"`
	IV            string `json:"iv,omitempty"`
}

// AccessResult is returned by the access gate for every non-error outcome.
type AccessResult struct {
	ConsentID    id.ConsentID
	Verdict      Verdict
	Status       Status
	ItemID       id.ItemID
	ItemName     string
	ItemType     string
	DeliveryMode DeliveryMode
	// AccessCount is the remaining budget observed before this call consumed anything.
	AccessCount int
	ValidUntil  time.Time
	Payload     *Payload
}

// Granted reports whether the result carries a payload.
func (r *AccessResult) Granted() bool {
	return r != nil && r.Verdict == VerdictGranted
}

// RetrievalResult is returned by an indirect retrieval. Content is set only
// when Verdict is granted.
type RetrievalResult struct {
	ConsentID      id.ConsentID
	Verdict        Verdict
	Status         Status
	ItemName       string
	ItemType       string
	RemainingCount int
	Content        []byte
	ReleasedKey    string
	IV             string
}

// DecideParams carries an owner's decision and approval parameters.
type DecideParams struct {
	Decision    Decision
	Count       int
	ValidUntil  *time.Time
	ReleasedKey string
}

// DecideResult reports the status after an owner decision.
type DecideResult struct {
	ConsentID   id.ConsentID
	Status      Status
	AccessCount int
	ValidUntil  time.Time
}
