package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StreamWriter is the part of the Redis client the relay writes with.
type StreamWriter interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// OutboxQueue is the part of the outbox the relay drains.
type OutboxQueue interface {
	Due(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID, entryID string) error
	MarkFailed(ctx context.Context, event *OutboxEvent, cause error) (string, error)
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxLen trims each stream to roughly this many entries. Zero keeps
	// every entry.
	MaxLen int64
}

// Relay moves item price events from the outbox onto Redis streams, one
// entry per event with the price fields readable without decoding JSON.
type Relay struct {
	queue     OutboxQueue
	stream    StreamWriter
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	maxLen    int64
}

func NewRelay(queue OutboxQueue, stream StreamWriter, logger *slog.Logger, cfg RelayConfig) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		queue:     queue,
		stream:    stream,
		logger:    logger.With("component", "relay"),
		interval:  cfg.PollInterval,
		batchSize: cfg.BatchSize,
		maxLen:    cfg.MaxLen,
	}
}

// drainStats counts what one pass over the due events did.
type drainStats struct {
	published    int
	retrying     int
	deadLettered int
}

// Run drains the outbox once immediately and then on every tick until ctx
// is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("relay started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		stats, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logger.Error("outbox drain failed", "error", err)
		case stats != (drainStats{}):
			r.logger.Info("outbox drained",
				"published", stats.published,
				"retrying", stats.retrying,
				"dead_lettered", stats.deadLettered)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain publishes one batch of due events. A failing event is rescheduled
// and never blocks the events behind it.
func (r *Relay) drain(ctx context.Context) (drainStats, error) {
	var stats drainStats

	events, err := r.queue.Due(ctx, r.batchSize)
	if err != nil {
		return stats, err
	}

	for _, event := range events {
		entryID, err := r.publish(ctx, event)
		if err == nil {
			if err := r.queue.MarkPublished(ctx, event.ID, entryID); err != nil {
				r.logger.Error("failed to record published event", "event_id", event.ID, "error", err)
			}
			stats.published++
			continue
		}

		status, markErr := r.queue.MarkFailed(ctx, event, err)
		if markErr != nil {
			r.logger.Error("failed to record publish failure", "event_id", event.ID, "error", markErr)
			continue
		}
		if status == OutboxStatusDeadLetter {
			stats.deadLettered++
			r.logger.Warn("event moved to dead letter",
				"event_id", event.ID,
				"item_id", event.AggregateID,
				"attempts", event.RetryCount,
				"error", err)
			continue
		}
		stats.retrying++
		r.logger.Debug("event publish failed, will retry",
			"event_id", event.ID,
			"item_id", event.AggregateID,
			"next_retry_at", event.NextRetryAt,
			"error", err)
	}
	return stats, nil
}

func (r *Relay) publish(ctx context.Context, event *OutboxEvent) (string, error) {
	values, err := streamValues(event)
	if err != nil {
		return "", err
	}

	args := &redis.XAddArgs{
		Stream: event.TargetStream,
		Values: values,
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	entryID, err := r.stream.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", event.TargetStream, err)
	}
	return entryID, nil
}

// itemFields are the payload fields lifted into the stream entry.
type itemFields struct {
	ItemID    string    `json:"item_id"`
	Name      string    `json:"name"`
	Price     *float64  `json:"price"`
	Available bool      `json:"available"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// streamValues flattens an item event into stream fields. A missing price
// is published as an empty string; the full payload travels alongside.
func streamValues(event *OutboxEvent) (map[string]interface{}, error) {
	var f itemFields
	if err := json.Unmarshal(event.Payload, &f); err != nil {
		return nil, fmt.Errorf("decode payload of event %s: %w", event.ID, err)
	}
	if f.ItemID == "" {
		f.ItemID = event.AggregateID
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = event.CreatedAt
	}

	price := ""
	if f.Price != nil {
		price = strconv.FormatFloat(*f.Price, 'f', 2, 64)
	}

	return map[string]interface{}{
		"event_id":   event.ID.String(),
		"event_type": event.EventType,
		"item_id":    f.ItemID,
		"name":       f.Name,
		"price":      price,
		"available":  strconv.FormatBool(f.Available),
		"status":     f.Status,
		"updated_at": f.UpdatedAt.UTC().Format(time.RFC3339),
		"attempt":    event.RetryCount + 1,
		"payload":    string(event.Payload),
	}, nil
}
