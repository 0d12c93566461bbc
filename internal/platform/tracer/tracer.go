// Package tracer is the span API used by the consent services. It keeps
// OpenTelemetry types out of domain code; NoopTracer serves tests and
// OTelTracer serves production.
package tracer

import "context"

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span and marks it failed when err is non-nil.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := t.Start(ctx, tracer.SpanAccess,
//	    tracer.String(tracer.AttrItemID, itemID.String()),
//	)
//	defer func() { span.End(err) }()
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an integer attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: int64(value)}
}

// Span names.
const (
	SpanAccess    = "consent.access"
	SpanReRequest = "consent.rerequest"
	SpanRetrieve  = "consent.retrieve"
	SpanBlobFetch = "consent.retrieve.fetch"
	SpanDecide    = "consent.decide"
	SpanPending   = "consent.pending"
	SpanHistory   = "consent.history"
	SpanReconcile = "consent.reconcile"
)

// Attribute keys.
const (
	AttrItemID       = "item.id"
	AttrDeliveryMode = "item.delivery_mode"
	AttrConsentID    = "consent.id"
	AttrStatus       = "consent.status"
	AttrVerdict      = "consent.verdict"
	AttrDecision     = "consent.decision"
	AttrRole         = "principal.role"
	AttrOwnerActive  = "owner.active"
	AttrBlobScheme   = "blob.scheme"
	AttrRowsChanged  = "rows_changed"
)

// Event names.
const (
	EventLazyTransition = "consent.lazy_transition"
	EventAuditRecorded  = "audit.recorded"
)
