package handler

import (
	"time"

	"consentbroker/internal/consent/models"
)

// Response headers of a content download.
const (
	HeaderConsentID      = "X-Consent-Id"
	HeaderRemainingCount = "X-Remaining-Count"
	HeaderReleasedKey    = "X-Released-Key"
	HeaderIV             = "X-Content-IV"
)

// AccessResponse is returned by access and re-request. Payload fields are set
// on a grant only.
type AccessResponse struct {
	ConsentID     string     `json:"consent_id"`
	Verdict       string     `json:"verdict"`
	Status        string     `json:"status"`
	ItemID        string     `json:"item_id"`
	ItemName      string     `json:"item_name"`
	ItemType      string     `json:"item_type,omitempty"`
	DeliveryMode  string     `json:"delivery_mode"`
	AccessCount   int        `json:"access_count"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	EncryptedData string     `json:"encrypted_data,omitempty"`
	EncryptedURL  string     `json:"encrypted_url,omitempty"`
	ReleasedKey   string     `json:"released_key,omitempty"`
	IV            string     `json:"iv,omitempty"`
}

// RetrievalResponse is the JSON body of a content call that was not granted.
type RetrievalResponse struct {
	ConsentID      string `json:"consent_id"`
	Verdict        string `json:"verdict"`
	Status         string `json:"status"`
	ItemName       string `json:"item_name"`
	RemainingCount int    `json:"remaining_count"`
}

type DecisionResponse struct {
	ConsentID   string     `json:"consent_id"`
	Status      string     `json:"status"`
	AccessCount int        `json:"access_count"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
}

type PendingResponse struct {
	Pending []PendingConsent `json:"pending"`
}

type PendingConsent struct {
	ConsentID          string    `json:"consent_id"`
	ItemID             string    `json:"item_id"`
	ItemName           string    `json:"item_name"`
	ItemType           string    `json:"item_type,omitempty"`
	RequesterID        string    `json:"requester_id"`
	RequesterName      string    `json:"requester_name"`
	RequesterEmail     string    `json:"requester_email"`
	RequesterPublicKey string    `json:"requester_public_key,omitempty"`
	RequestedAt        time.Time `json:"requested_at"`
}

type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

type HistoryEntry struct {
	ConsentID      string    `json:"consent_id"`
	ItemName       string    `json:"item_name"`
	ItemType       string    `json:"item_type,omitempty"`
	Counterpart    string    `json:"counterpart"`
	Actor          string    `json:"actor"`
	Action         string    `json:"action"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Remarks        string    `json:"remarks,omitempty"`
	Extra          string    `json:"extra,omitempty"`
}

// boundedValidity hides the unbounded sentinel from clients.
func boundedValidity(t time.Time) *time.Time {
	if t.IsZero() || models.IsUnbounded(t) {
		return nil
	}
	return &t
}

func toAccessResponse(res *models.AccessResult) *AccessResponse {
	out := &AccessResponse{
		ConsentID:    res.ConsentID.String(),
		Verdict:      string(res.Verdict),
		Status:       string(res.Status),
		ItemID:       res.ItemID.String(),
		ItemName:     res.ItemName,
		ItemType:     res.ItemType,
		DeliveryMode: string(res.DeliveryMode),
		AccessCount:  res.AccessCount,
		ValidUntil:   boundedValidity(res.ValidUntil),
	}
	if res.Payload != nil {
		out.EncryptedData = res.Payload.EncryptedData
		out.EncryptedURL = res.Payload.EncryptedURL
		out.ReleasedKey = res.Payload.ReleasedKey
		out.IV = res.Payload.IV
	}
	return out
}

func toRetrievalResponse(res *models.RetrievalResult) *RetrievalResponse {
	return &RetrievalResponse{
		ConsentID:      res.ConsentID.String(),
		Verdict:        string(res.Verdict),
		Status:         string(res.Status),
		ItemName:       res.ItemName,
		RemainingCount: res.RemainingCount,
	}
}

func toDecisionResponse(res *models.DecideResult) *DecisionResponse {
	return &DecisionResponse{
		ConsentID:   res.ConsentID.String(),
		Status:      string(res.Status),
		AccessCount: res.AccessCount,
		ValidUntil:  boundedValidity(res.ValidUntil),
	}
}

func toPendingResponse(pending []models.PendingConsent) *PendingResponse {
	out := make([]PendingConsent, 0, len(pending))
	for _, p := range pending {
		out = append(out, PendingConsent{
			ConsentID:          p.ConsentID.String(),
			ItemID:             p.ItemID.String(),
			ItemName:           p.ItemName,
			ItemType:           p.ItemType,
			RequesterID:        p.RequesterID.String(),
			RequesterName:      p.RequesterName,
			RequesterEmail:     p.RequesterEmail,
			RequesterPublicKey: p.RequesterPubKey,
			RequestedAt:        p.RequestedAt,
		})
	}
	return &PendingResponse{Pending: out}
}

func toHistoryResponse(entries []models.HistoryEntry) *HistoryResponse {
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		entry := HistoryEntry{
			ConsentID:   e.ConsentID.String(),
			ItemName:    e.ItemName,
			ItemType:    e.ItemType,
			Counterpart: e.CounterpartName,
			Actor:       e.Actor,
			Action:      string(e.Action),
			Status:      string(e.NewStatus),
			Timestamp:   e.Timestamp,
			Remarks:     e.Remarks,
			Extra:       e.Extra,
		}
		if e.PreviousStatus != nil {
			entry.PreviousStatus = string(*e.PreviousStatus)
		}
		out = append(out, entry)
	}
	return &HistoryResponse{Entries: out}
}
