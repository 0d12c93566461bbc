package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"consentbroker/internal/platform/kafka/producer"
	"consentbroker/pkg/platform/audit/outbox"
	"consentbroker/pkg/platform/audit/outbox/metrics"
)

// Publisher delivers one message downstream. *producer.Producer satisfies it.
type Publisher interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox table and publishes audit entries to Kafka.
type Worker struct {
	store        outbox.Store
	publisher    Publisher
	topic        string
	batchSize    int
	pollInterval time.Duration
	retention    time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Worker.
type Option func(*Worker)

// WithTopic sets the Kafka topic for publishing.
func WithTopic(topic string) Option {
	return func(w *Worker) {
		w.topic = topic
	}
}

// WithBatchSize sets the maximum number of entries to fetch per poll.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		w.batchSize = size
	}
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithRetention sets how long processed entries are kept before cleanup.
// Zero disables cleanup.
func WithRetention(retention time.Duration) Option {
	return func(w *Worker) {
		w.retention = retention
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// DefaultTopic carries consent audit entries.
const DefaultTopic = "consent.audit.entries"

// New creates a new outbox worker.
func New(store outbox.Store, publisher Publisher, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		store:        store,
		publisher:    publisher,
		topic:        DefaultTopic,
		batchSize:    100,
		pollInterval: 100 * time.Millisecond,
		ctx:          ctx,
		cancel:       cancel,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start begins the polling loop in a background goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Run blocks until ctx is cancelled, then drains and returns.
// It is the errgroup-friendly form of Start and Stop.
func (w *Worker) Run(ctx context.Context) error {
	w.Start()
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return w.Stop(stopCtx)
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case <-ticker.C:
			w.poll(w.ctx)
		}
	}
}

// PollOnce runs a single claim-publish-mark cycle and reports how many
// entries were published.
func (w *Worker) PollOnce(ctx context.Context) int {
	return w.poll(ctx)
}

// poll claims one batch and publishes it. Marks ride on the claim, so a
// batch whose commit fails is published again on a later poll; consumers
// dedupe on entry_id.
func (w *Worker) poll(ctx context.Context) int {
	start := time.Now()

	claimed, published := 0, 0
	err := w.store.Claim(ctx, w.batchSize, func(ctx context.Context, tx outbox.Store, entries []*outbox.Entry) error {
		claimed = len(entries)
		if claimed == 0 {
			return nil
		}
		if w.metrics != nil {
			w.metrics.ObserveBatchSize(claimed)
			w.metrics.SetOldestPendingAge(time.Since(entries[0].CreatedAt).Seconds())
		}

		for _, entry := range entries {
			if err := w.publishEntry(ctx, entry); err != nil {
				w.logError("failed to publish outbox entry",
					"id", entry.ID,
					"event_type", entry.EventType,
					"error", err,
				)
				if w.metrics != nil {
					w.metrics.IncPublishFailures()
				}
				// Retried on the next poll.
				continue
			}
			if err := tx.MarkProcessed(ctx, entry.ID, time.Now()); err != nil {
				w.logError("failed to mark entry as processed", "id", entry.ID, "error", err)
				continue
			}
			published++
		}
		return nil
	})
	if err != nil {
		w.logError("failed to claim outbox entries", "error", err)
		if w.metrics != nil {
			w.metrics.IncPublishFailures()
		}
		return 0
	}
	if claimed == 0 {
		return 0
	}
	if w.metrics != nil {
		w.metrics.AddPublished(published)
	}

	if w.retention > 0 {
		if _, err := w.store.DeleteProcessedBefore(ctx, time.Now().Add(-w.retention)); err != nil {
			w.logError("failed to clean processed outbox entries", "error", err)
		}
	}

	if w.metrics != nil {
		w.metrics.ObservePollDuration(time.Since(start).Seconds())
	}
	return published
}

func (w *Worker) publishEntry(ctx context.Context, entry *outbox.Entry) error {
	start := time.Now()

	msg := &producer.Message{
		Topic: w.topic,
		// Entries of one consent share a key so they stay ordered within a partition.
		Key:   []byte(entry.AggregateID),
		Value: entry.Payload,
		Headers: map[string]string{
			"entry_id":       entry.ID.String(),
			"aggregate_type": entry.AggregateType,
			"event_type":     entry.EventType,
		},
	}

	if err := w.publisher.Produce(ctx, msg); err != nil {
		return err
	}

	if w.metrics != nil {
		w.metrics.ObservePublishDuration(time.Since(start).Seconds())
	}
	return nil
}

// drain processes remaining entries during shutdown.
func (w *Worker) drain() {
	if w.logger != nil {
		w.logger.Info("draining outbox worker")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for ctx.Err() == nil {
		if w.poll(ctx) == 0 {
			return
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateMetrics updates the pending depth metric.
func (w *Worker) UpdateMetrics(ctx context.Context) error {
	if w.metrics == nil {
		return nil
	}

	count, err := w.store.CountPending(ctx)
	if err != nil {
		return err
	}

	w.metrics.SetPendingDepth(count)
	return nil
}

func (w *Worker) logError(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Error(msg, args...)
	}
}
