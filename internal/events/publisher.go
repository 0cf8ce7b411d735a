package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/ltb-sync/internal/database"
	"github.com/maltedev/ltb-sync/internal/models"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeItemPriceRefreshed is recorded whenever a sync writes remote
	// data back to an inventory item.
	EventTypeItemPriceRefreshed EventType = "ITEM_PRICE_REFRESHED"

	aggregateItem = "item"
	eventSource   = "ltb-sync"
)

// PriceRefreshedPayload is the body of an ITEM_PRICE_REFRESHED event.
type PriceRefreshedPayload struct {
	EventID   string        `json:"event_id"`
	EventType string        `json:"event_type"`
	Timestamp time.Time     `json:"timestamp"`
	ItemID    string        `json:"item_id"`
	Name      string        `json:"name"`
	Article   string        `json:"article,omitempty"`
	URL       string        `json:"url,omitempty"`
	Price     *float64      `json:"price"`
	Available bool          `json:"available"`
	Status    models.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
	Source    string        `json:"source"`
}

// NewPriceRefreshedPayload describes the patch applied to item.
func NewPriceRefreshedPayload(item models.InventoryItem, patch models.ItemPatch) *PriceRefreshedPayload {
	url := item.ReferenceURL()
	if patch.RemoteURL != nil {
		url = *patch.RemoteURL
	}
	return &PriceRefreshedPayload{
		ItemID:    item.ID,
		Name:      item.Name,
		Article:   item.Article,
		URL:       url,
		Price:     patch.RemotePrice,
		Available: patch.RemoteAvailable,
		Status:    patch.Source,
		UpdatedAt: patch.RemoteUpdatedAt,
	}
}

// OutboxWriter is the part of the outbox the publisher writes to.
type OutboxWriter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, event *database.OutboxEvent) error
}

// Publisher records domain events in the transactional outbox. It never
// opens its own transaction; callers pass the one their state change runs in.
type Publisher struct {
	outbox OutboxWriter
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(outbox OutboxWriter, logger *slog.Logger) *Publisher {
	return &Publisher{
		outbox: outbox,
		logger: logger.With("component", "event_publisher"),
		now:    time.Now,
	}
}

// PublishPriceRefreshedWithTx writes an ITEM_PRICE_REFRESHED event inside tx.
func (p *Publisher) PublishPriceRefreshedWithTx(ctx context.Context, tx pgx.Tx, payload *PriceRefreshedPayload) error {
	if payload.ItemID == "" {
		return fmt.Errorf("price refreshed event requires an item id")
	}
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeItemPriceRefreshed)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = p.now()
	}
	if payload.Source == "" {
		payload.Source = eventSource
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: aggregateItem,
		AggregateID:   payload.ItemID,
		EventType:     payload.EventType,
		Payload:       data,
		TargetStream:  database.DefaultStream,
	}
	if err := p.outbox.InsertWithTx(ctx, tx, outboxEvent); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	p.logger.Debug("event recorded in outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"item_id", payload.ItemID,
		"outbox_id", outboxEvent.ID,
	)
	return nil
}
