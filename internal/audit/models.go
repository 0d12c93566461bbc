package audit

import (
	"time"

	"github.com/google/uuid"

	"consentbroker/internal/consent/models"
	id "consentbroker/pkg/domain"
)

// Entry is one immutable consent transition. Entries are never updated or
// deleted; ordered by Timestamp they reconstruct a record's status trajectory.
//
// ID is assigned by the caller before insertion so a retried append of the
// same entry is a no-op rather than a duplicate.
type Entry struct {
	ID             uuid.UUID      `json:"id"`
	ConsentID      id.ConsentID   `json:"consent_id"`
	Actor          string         `json:"actor"`
	PreviousStatus *models.Status `json:"previous_status"`
	NewStatus      models.Status  `json:"new_status"`
	Action         models.Action  `json:"action"`
	Timestamp      time.Time      `json:"timestamp"`
	Remarks        string         `json:"remarks,omitempty"`
	Extra          string         `json:"extra,omitempty"`
}

// Validate enforces the shape every stored entry must have.
func (e Entry) Validate() error {
	switch {
	case e.ID == uuid.Nil:
		return errInvalidEntry("entry ID required")
	case e.ConsentID.IsNil():
		return errInvalidEntry("consent ID required")
	case e.Actor == "":
		return errInvalidEntry("actor required")
	case !e.Action.IsValid():
		return errInvalidEntry("unknown action " + string(e.Action))
	case !e.NewStatus.IsValid():
		return errInvalidEntry("unknown status " + string(e.NewStatus))
	case e.PreviousStatus == nil && e.Action != models.ActionRequest:
		return errInvalidEntry("previous status required for " + string(e.Action))
	case e.Timestamp.IsZero():
		return errInvalidEntry("timestamp required")
	}
	return nil
}
