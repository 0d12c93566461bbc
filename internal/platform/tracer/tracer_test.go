package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNoopTracer(t *testing.T) {
	ctx := context.Background()
	newCtx, span := NewNoop().Start(ctx, SpanAccess, String(AttrItemID, "item-1"))

	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)
	span.SetAttributes(Bool(AttrOwnerActive, true))
	span.AddEvent(EventAuditRecorded, Int(AttrRowsChanged, 2))
	span.End(errors.New("boom"))
}

func TestOTelTracer_StartAndEnd(t *testing.T) {
	tr := NewOTel(WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	ctx, span := tr.Start(context.Background(), SpanDecide, String(AttrDecision, "approve"))
	require.NotNil(t, ctx)
	span.SetAttributes(String(AttrStatus, "approved"))
	span.AddEvent(EventLazyTransition)
	span.End(nil)

	_, failed := tr.Start(context.Background(), SpanRetrieve)
	failed.End(errors.New("fetch failed"))
}

func TestOTelTracer_DefaultsToGlobalProvider(t *testing.T) {
	tr := NewOTel()
	assert.NotNil(t, tr.tracer)
}

func TestToOTelAttributes(t *testing.T) {
	got := toOTelAttributes([]Attribute{
		String("s", "v"),
		Bool("b", true),
		Int("i", 3),
		{Key: "n", Value: 7},
		{Key: "f", Value: 0.5},
		{Key: "skipped", Value: struct{}{}},
	})

	assert.Equal(t, []attribute.KeyValue{
		attribute.String("s", "v"),
		attribute.Bool("b", true),
		attribute.Int64("i", 3),
		attribute.Int("n", 7),
		attribute.Float64("f", 0.5),
	}, got)
	assert.Nil(t, toOTelAttributes(nil))
}
