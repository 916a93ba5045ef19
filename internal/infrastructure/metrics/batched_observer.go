package metrics

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"signalbroker/internal/core/domain"
	"signalbroker/pkg/batch"
)

// eventOp is one observed event queued for the fleet-wide event counters
// mirrored to Redis. It carries nothing but a field name so Execute can
// stay a no-op; the real work happens once per batch in eventProcessor,
// which pipelines every pending event into a single Redis round trip.
type eventOp struct {
	field string
}

func (eventOp) Execute(context.Context) error { return nil }

type eventProcessor struct {
	client *redis.Client
	key    string
	logger *zap.SugaredLogger
}

func (p *eventProcessor) ProcessBatch(ctx context.Context, ops []batch.Operation) error {
	counts := make(map[string]int64)
	for _, op := range ops {
		if e, ok := op.(eventOp); ok {
			counts[e.field]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for field, n := range counts {
			pipe.HIncrBy(ctx, p.key, field, n)
		}
		return nil
	})
	if err != nil && p.logger != nil {
		p.logger.Warnw("batched event mirror write failed", "error", err)
	}
	return err
}

// BatchedEventObserver implements ports.MetricsObserver, mirroring every
// observed event to Redis as a fleet-wide counter. Events are batched
// (pkg/batch) so a burst of connects/disconnects costs one Redis round
// trip instead of one per event; this instance is meant to run alongside,
// not instead of, the Prometheus collector, which stays synchronous and
// authoritative for this process's own metrics.
type BatchedEventObserver struct {
	batcher *batch.Batcher
}

// NewBatchedEventObserver flushes every batchSize events or every
// flushInterval, whichever comes first.
func NewBatchedEventObserver(client *redis.Client, instanceID string, batchSize int, flushInterval time.Duration, logger *zap.SugaredLogger) *BatchedEventObserver {
	processor := &eventProcessor{
		client: client,
		key:    "signalbroker:events:" + instanceID,
		logger: logger,
	}
	return &BatchedEventObserver{
		batcher: batch.NewBatcher(batchSize, flushInterval, processor),
	}
}

func (o *BatchedEventObserver) ConnectionRegistered(role domain.Role) {
	_ = o.batcher.Add(eventOp{field: "connections_registered_" + role.String()})
}

func (o *BatchedEventObserver) ConnectionUnregistered(role domain.Role) {
	_ = o.batcher.Add(eventOp{field: "connections_unregistered_" + role.String()})
}

func (o *BatchedEventObserver) SubscriptionBound() {
	_ = o.batcher.Add(eventOp{field: "subscriptions_bound"})
}

func (o *BatchedEventObserver) SubscriptionUnbound() {
	_ = o.batcher.Add(eventOp{field: "subscriptions_unbound"})
}

func (o *BatchedEventObserver) FrameRouted(frameType string) {
	_ = o.batcher.Add(eventOp{field: "frames_routed_" + frameType})
}

func (o *BatchedEventObserver) FrameRejected(reason string) {
	_ = o.batcher.Add(eventOp{field: "frames_rejected_" + reason})
}

func (o *BatchedEventObserver) IdleReaped(role domain.Role) {
	_ = o.batcher.Add(eventOp{field: "idle_reaped_" + role.String()})
}

// Stop flushes any pending events and stops the background batcher.
func (o *BatchedEventObserver) Stop() {
	o.batcher.Stop()
}
