package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessed  = "processed"
	OutboxStatusFailed     = "failed"
	OutboxStatusDeadLetter = "dead_letter"

	// MaxRetryCount is the number of failed publishes after which an event
	// moves to dead letter.
	MaxRetryCount = 5

	// DefaultStream receives inventory price events.
	DefaultStream = "stream:inventory_prices"

	maxBackoff = 300 * time.Second
)

var ErrEventNotFound = errors.New("outbox event not found")

// OutboxEvent is one row of the transactional outbox.
type OutboxEvent struct {
	ID            uuid.UUID       `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	TargetStream  string          `db:"target_stream"`
	Status        string          `db:"status"`
	RetryCount    int             `db:"retry_count"`
	ErrorMessage  *string         `db:"error_message"`
	StreamEntryID *string         `db:"stream_entry_id"`
	CreatedAt     time.Time       `db:"created_at"`
	ProcessedAt   *time.Time      `db:"processed_at"`
	NextRetryAt   *time.Time      `db:"next_retry_at"`
}

// prepare validates a new event and fills its defaults.
func (e *OutboxEvent) prepare(now time.Time) error {
	if e.AggregateType == "" || e.AggregateID == "" || e.EventType == "" {
		return fmt.Errorf("outbox event requires aggregate type, aggregate id and event type")
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("outbox event %s has no payload", e.EventType)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = OutboxStatusPending
	}
	if e.TargetStream == "" {
		e.TargetStream = DefaultStream
	}
	e.CreatedAt = now
	if e.NextRetryAt == nil {
		e.NextRetryAt = &now
	}
	return nil
}

// recordFailure counts one failed publish and schedules the next attempt.
// The MaxRetryCount-th failure moves the event to dead letter.
func (e *OutboxEvent) recordFailure(cause error, now time.Time) {
	e.RetryCount++
	e.Status = OutboxStatusFailed
	if e.RetryCount >= MaxRetryCount {
		e.Status = OutboxStatusDeadLetter
	}
	next := now.Add(backoff(e.RetryCount))
	e.NextRetryAt = &next
	msg := cause.Error()
	e.ErrorMessage = &msg
}

// backoff doubles from 2s after the first failure and stops at maxBackoff.
func backoff(failures int) time.Duration {
	if failures >= 9 {
		return maxBackoff
	}
	return min(time.Duration(1<<failures)*time.Second, maxBackoff)
}

type OutboxRepository struct {
	db  *DB
	now func() time.Time
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db, now: time.Now}
}

// InsertWithTx records event in the caller's transaction, so the event
// exists only if the state change it describes commits.
func (r *OutboxRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	if err := event.prepare(r.now()); err != nil {
		return err
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_event (
			id, aggregate_type, aggregate_id, event_type, payload,
			target_stream, status, retry_count, created_at, next_retry_at
		) VALUES (
			@id, @aggregate_type, @aggregate_id, @event_type, @payload,
			@target_stream, @status, @retry_count, @created_at, @next_retry_at
		)`,
		pgx.NamedArgs{
			"id":             event.ID,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID,
			"event_type":     event.EventType,
			"payload":        event.Payload,
			"target_stream":  event.TargetStream,
			"status":         event.Status,
			"retry_count":    event.RetryCount,
			"created_at":     event.CreatedAt,
			"next_retry_at":  event.NextRetryAt,
		})
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// Due returns up to limit events whose next attempt time has passed,
// oldest first. Dead-lettered and published events are never returned.
func (r *OutboxRepository) Due(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload,
			target_stream, status, retry_count, error_message, stream_entry_id,
			created_at, processed_at, next_retry_at
		FROM outbox_event
		WHERE status IN (@pending, @failed) AND next_retry_at <= @now
		ORDER BY created_at
		LIMIT @limit`,
		pgx.NamedArgs{
			"pending": OutboxStatusPending,
			"failed":  OutboxStatusFailed,
			"now":     r.now(),
			"limit":   limit,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to query due events: %w", err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[OutboxEvent])
	if err != nil {
		return nil, fmt.Errorf("failed to scan due events: %w", err)
	}
	return events, nil
}

// MarkPublished records the stream entry the event was written to.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, entryID string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE outbox_event
		SET status = @status, processed_at = @now, stream_entry_id = @entry
		WHERE id = @id`,
		pgx.NamedArgs{
			"status": OutboxStatusProcessed,
			"now":    r.now(),
			"entry":  entryID,
			"id":     id,
		})
	if err != nil {
		return fmt.Errorf("failed to mark event %s published: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return nil
}

// MarkFailed stores a failed publish of event and returns the status the
// event moved to. The update is guarded on the retry count the event was
// read with, so a concurrent relay cannot count the same attempt twice.
func (r *OutboxRepository) MarkFailed(ctx context.Context, event *OutboxEvent, cause error) (string, error) {
	seen := event.RetryCount
	event.recordFailure(cause, r.now())

	tag, err := r.db.pool.Exec(ctx, `
		UPDATE outbox_event
		SET status = @status, retry_count = @retry_count,
			error_message = @error, next_retry_at = @next_retry_at
		WHERE id = @id AND retry_count = @seen`,
		pgx.NamedArgs{
			"status":        event.Status,
			"retry_count":   event.RetryCount,
			"error":         event.ErrorMessage,
			"next_retry_at": event.NextRetryAt,
			"id":            event.ID,
			"seen":          seen,
		})
	if err != nil {
		return "", fmt.Errorf("failed to mark event %s failed: %w", event.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("%w: %s at retry %d", ErrEventNotFound, event.ID, seen)
	}
	return event.Status, nil
}

// Counts returns the number of events waiting to be published and the
// number in dead letter.
func (r *OutboxRepository) Counts(ctx context.Context) (pending, deadLetter int64, err error) {
	err = r.db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status IN (@pending, @failed)),
			COUNT(*) FILTER (WHERE status = @dead)
		FROM outbox_event`,
		pgx.NamedArgs{
			"pending": OutboxStatusPending,
			"failed":  OutboxStatusFailed,
			"dead":    OutboxStatusDeadLetter,
		}).Scan(&pending, &deadLetter)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count outbox events: %w", err)
	}
	return pending, deadLetter, nil
}
