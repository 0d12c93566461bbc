//go:build integration

package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"consentbroker/internal/platform/kafka"
	"consentbroker/internal/platform/kafka/producer"
	"consentbroker/pkg/platform/audit/outbox"
	outboxpg "consentbroker/pkg/platform/audit/outbox/store/postgres"
	"consentbroker/pkg/platform/audit/outbox/worker"
	"consentbroker/pkg/testutil/containers"
)

const topic = "consent.audit.entries"

type OutboxKafkaSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	kafka    *containers.KafkaContainer
	store    *outboxpg.Store
	producer *producer.Producer
}

func TestOutboxKafkaSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxKafkaSuite))
}

func (s *OutboxKafkaSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.kafka = mgr.GetKafka(s.T())
	s.store = outboxpg.New(s.postgres.DB)
	s.Require().NoError(s.kafka.EnsureTopic(context.Background(), topic))

	p, err := producer.New(kafka.DefaultProducerConfig(s.kafka.Brokers), nil)
	s.Require().NoError(err)
	s.producer = p
}

func (s *OutboxKafkaSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

func (s *OutboxKafkaSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *OutboxKafkaSuite) TestPublishesPendingEntriesKeyedByConsent() {
	ctx := context.Background()
	consentID := uuid.NewString()
	entry := outbox.NewEntry(uuid.New(), "consent", consentID, "consent.approve",
		[]byte(`{"action":"approve"}`), time.Now().UTC())
	s.Require().NoError(s.store.Append(ctx, entry))

	w := worker.New(s.store, s.producer, worker.WithTopic(topic))
	s.Equal(1, w.PollOnce(ctx))

	pending, err := s.store.CountPending(ctx)
	s.Require().NoError(err)
	s.Zero(pending)

	reader, err := s.kafka.NewReader(topic)
	s.Require().NoError(err)
	defer reader.Close()

	rec := s.kafka.WaitForRecord(ctx, reader, 30*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == consentID
	})
	s.Require().NotNil(rec, "record for consent %s not published", consentID)
	s.JSONEq(`{"action":"approve"}`, string(rec.Value))

	headers := map[string]string{}
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	s.Equal(entry.ID.String(), headers["entry_id"])
	s.Equal("consent.approve", headers["event_type"])
}

func (s *OutboxKafkaSuite) TestProducerHealthy() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.NoError(s.producer.Healthy(ctx))
}
