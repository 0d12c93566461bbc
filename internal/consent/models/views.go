package models

import (
	"time"

	id "consentbroker/pkg/domain"
)

// PendingConsent is one row of an owner's pending list.
type PendingConsent struct {
	ConsentID       id.ConsentID
	ItemID          id.ItemID
	ItemName        string
	ItemType        string
	RequesterID     id.RequesterID
	RequesterName   string
	RequesterEmail  string
	RequesterPubKey string
	RequestedAt     time.Time
}

// HistoryEntry is one audit entry joined with item and counterpart metadata.
type HistoryEntry struct {
	ConsentID       id.ConsentID
	ItemName        string
	ItemType        string
	CounterpartName string
	Actor           string
	Action          Action
	PreviousStatus  *Status
	NewStatus       Status
	Timestamp       time.Time
	Remarks         string
	Extra           string
}
