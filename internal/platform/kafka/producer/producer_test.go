package producer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentbroker/internal/platform/kafka"
)

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(kafka.DefaultProducerConfig(" , "), nil)
	require.Error(t, err)
}

func TestRecordOrdersHeaders(t *testing.T) {
	rec := Record(&Message{
		Topic: "consent.audit.entries",
		Key:   []byte("consent-1"),
		Value: []byte(`{}`),
		Headers: map[string]string{
			"event_type":     "consent.access",
			"aggregate_type": "consent",
			"entry_id":       "e1",
		},
	})

	require.Len(t, rec.Headers, 3)
	assert.Equal(t, "aggregate_type", rec.Headers[0].Key)
	assert.Equal(t, "entry_id", rec.Headers[1].Key)
	assert.Equal(t, "event_type", rec.Headers[2].Key)
	assert.Equal(t, []byte("consent-1"), rec.Key)
}

func TestNoopProducer(t *testing.T) {
	p := NewNoopProducer(nil)
	require.NoError(t, p.Produce(context.Background(), &Message{Topic: "t"}))
	assert.NoError(t, p.Healthy(context.Background()))
	assert.NoError(t, p.Close())
}
