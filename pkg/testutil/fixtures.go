package testutil

import (
	"time"

	"github.com/google/uuid"

	"consentbroker/internal/consent/models"
	id "consentbroker/pkg/domain"
)

// TestIDs provides convenient pre-generated IDs for tests.
// Use these for deterministic test data.
var TestIDs = struct {
	OwnerID1     id.OwnerID
	OwnerID2     id.OwnerID
	RequesterID1 id.RequesterID
	RequesterID2 id.RequesterID
	ItemID1      id.ItemID
	ItemID2      id.ItemID
}{
	OwnerID1:     id.OwnerID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	OwnerID2:     id.OwnerID(uuid.MustParse("22222222-2222-2222-2222-222222222222")),
	RequesterID1: id.RequesterID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000001")),
	RequesterID2: id.RequesterID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000002")),
	ItemID1:      id.ItemID(uuid.MustParse("cccc0000-0000-0000-0000-000000000001")),
	ItemID2:      id.ItemID(uuid.MustParse("cccc0000-0000-0000-0000-000000000002")),
}

// ItemBuilder provides a fluent interface for building test items.
type ItemBuilder struct {
	item *models.Item
}

// NewItemBuilder creates an active inline item owned by a fresh owner.
func NewItemBuilder() *ItemBuilder {
	return &ItemBuilder{
		item: &models.Item{
			ID:            id.ItemID(uuid.New()),
			OwnerID:       id.OwnerID(uuid.New()),
			Name:          "medical-record.pdf",
			Type:          "application/pdf",
			DeliveryMode:  models.DeliveryInline,
			EncryptedData: "ciphertext",
			IV:            "iv-1",
			Active:        true,
		},
	}
}

func (b *ItemBuilder) WithID(itemID id.ItemID) *ItemBuilder {
	b.item.ID = itemID
	return b
}

func (b *ItemBuilder) WithOwner(ownerID id.OwnerID) *ItemBuilder {
	b.item.OwnerID = ownerID
	return b
}

func (b *ItemBuilder) WithName(name string) *ItemBuilder {
	b.item.Name = name
	return b
}

// Indirect switches the item to reference delivery at the given URL.
func (b *ItemBuilder) Indirect(url string) *ItemBuilder {
	b.item.DeliveryMode = models.DeliveryIndirect
	b.item.EncryptedData = ""
	b.item.EncryptedURL = url
	return b
}

func (b *ItemBuilder) Inactive() *ItemBuilder {
	b.item.Active = false
	return b
}

func (b *ItemBuilder) Build() *models.Item {
	item := *b.item
	return &item
}

// PartyBuilder provides a fluent interface for building test providers and seekers.
type PartyBuilder struct {
	party *models.Party
}

// NewPartyBuilder creates an active party with the given role.
func NewPartyBuilder(role models.Role) *PartyBuilder {
	partyID := uuid.NewString()
	return &PartyBuilder{
		party: &models.Party{
			ID:        partyID,
			Name:      string(role) + "-" + partyID[:8],
			Email:     string(role) + "-" + partyID[:8] + "@example.com",
			PublicKey: "pk-" + partyID[:8],
			Role:      role,
			Active:    true,
		},
	}
}

func (b *PartyBuilder) WithID(partyID string) *PartyBuilder {
	b.party.ID = partyID
	return b
}

func (b *PartyBuilder) WithName(name string) *PartyBuilder {
	b.party.Name = name
	return b
}

func (b *PartyBuilder) Inactive() *PartyBuilder {
	b.party.Active = false
	return b
}

func (b *PartyBuilder) Build() *models.Party {
	party := *b.party
	return &party
}

// RecordBuilder provides a fluent interface for building consent records in any status.
type RecordBuilder struct {
	record *models.Record
}

// NewRecordBuilder creates a pending record with count 1 and unbounded validity.
func NewRecordBuilder(item *models.Item, requesterID id.RequesterID) *RecordBuilder {
	now := time.Now().UTC()
	return &RecordBuilder{
		record: &models.Record{
			ID:          id.NewConsentID(),
			ItemID:      item.ID,
			RequesterID: requesterID,
			OwnerID:     item.OwnerID,
			Status:      models.StatusPending,
			AccessCount: 1,
			ValidUntil:  models.UnboundedValidity,
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

// Approved sets the approved status with the given budget and validity.
func (b *RecordBuilder) Approved(count int, validUntil time.Time) *RecordBuilder {
	b.record.Status = models.StatusApproved
	b.record.AccessCount = count
	b.record.ValidUntil = validUntil
	return b
}

func (b *RecordBuilder) CreatedAt(t time.Time) *RecordBuilder {
	b.record.CreatedAt = t
	b.record.UpdatedAt = t
	return b
}

func (b *RecordBuilder) Build() *models.Record {
	record := *b.record
	return &record
}
