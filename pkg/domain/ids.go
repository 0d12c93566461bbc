// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "consentbroker/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing an OwnerID where a RequesterID is expected.
type (
	ItemID      uuid.UUID
	OwnerID     uuid.UUID
	RequesterID uuid.UUID
	ConsentID   uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, CLI flags, seed files).

func ParseItemID(s string) (ItemID, error) {
	id, err := parseUUID(s, "item ID")
	return ItemID(id), err
}

func ParseOwnerID(s string) (OwnerID, error) {
	id, err := parseUUID(s, "owner ID")
	return OwnerID(id), err
}

func ParseRequesterID(s string) (RequesterID, error) {
	id, err := parseUUID(s, "requester ID")
	return RequesterID(id), err
}

func ParseConsentID(s string) (ConsentID, error) {
	id, err := parseUUID(s, "consent ID")
	return ConsentID(id), err
}

// NewConsentID generates a fresh identifier before the record is persisted.
func NewConsentID() ConsentID { return ConsentID(uuid.New()) }

// String methods - for logging and debugging.

func (id ItemID) String() string      { return uuid.UUID(id).String() }
func (id OwnerID) String() string     { return uuid.UUID(id).String() }
func (id RequesterID) String() string { return uuid.UUID(id).String() }
func (id ConsentID) String() string   { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id ItemID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id OwnerID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id RequesterID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ConsentID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// Text marshaling - keeps IDs as canonical strings in JSON payloads.

func (id ConsentID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id *ConsentID) UnmarshalText(data []byte) error  { return (*uuid.UUID)(id).UnmarshalText(data) }
func (id ItemID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id *ItemID) UnmarshalText(data []byte) error     { return (*uuid.UUID)(id).UnmarshalText(data) }
func (id OwnerID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id *OwnerID) UnmarshalText(data []byte) error    { return (*uuid.UUID)(id).UnmarshalText(data) }
func (id RequesterID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id *RequesterID) UnmarshalText(data []byte) error { return (*uuid.UUID)(id).UnmarshalText(data) }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here so store lookups can return a proper "not found".
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return id, nil
}
