package models

import "time"

// Status represents the lifecycle state of a consent record.
// Exactly one holds at any time.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusRevoked   Status = "revoked"
	StatusExpired   Status = "expired"
	StatusExhausted Status = "exhausted"
)

// validStatuses is the single source of truth for the closed status set.
var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusApproved:  true,
	StatusRejected:  true,
	StatusRevoked:   true,
	StatusExpired:   true,
	StatusExhausted: true,
}

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsReRequestable reports whether a requester may ask again from this status.
func (s Status) IsReRequestable() bool {
	switch s {
	case StatusRejected, StatusRevoked, StatusExpired, StatusExhausted:
		return true
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

// Ptr returns a pointer to a copy of s, for optional previous-status fields.
func (s Status) Ptr() *Status { return &s }

// Action labels the kind of transition recorded in the audit log.
type Action string

const (
	ActionRequest Action = "request"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionRevoke  Action = "revoke"
	ActionAccess  Action = "access"
	ActionExpire  Action = "expire"
)

// IsValid checks if the action is one of the supported enum values.
func (a Action) IsValid() bool {
	switch a {
	case ActionRequest, ActionApprove, ActionReject, ActionRevoke, ActionAccess, ActionExpire:
		return true
	default:
		return false
	}
}

// DeliveryMode determines when an access grant consumes the access budget.
type DeliveryMode string

const (
	// DeliveryInline returns content in the access response; the grant decrements immediately.
	DeliveryInline DeliveryMode = "inline"
	// DeliveryIndirect hands out a reference fetched afterwards; only a successful fetch decrements.
	DeliveryIndirect DeliveryMode = "indirect"
)

// IsValid checks if the delivery mode is one of the supported enum values.
func (m DeliveryMode) IsValid() bool {
	return m == DeliveryInline || m == DeliveryIndirect
}

// Decision is an owner's verdict on a consent record.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionRevoke  Decision = "revoke"
)

// IsValid checks if the decision is one of the supported enum values.
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject || d == DecisionRevoke
}

// Role is the resolved role of an authenticated principal.
type Role string

const (
	RoleProvider Role = "provider"
	RoleSeeker   Role = "seeker"
	RoleAdmin    Role = "admin"
)

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return r == RoleProvider || r == RoleSeeker || r == RoleAdmin
}

// UnboundedValidity is the far-future sentinel used until an owner sets a real bound.
var UnboundedValidity = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// IsUnbounded reports whether t is the unbounded-validity sentinel.
func IsUnbounded(t time.Time) bool {
	return !t.Before(UnboundedValidity)
}
