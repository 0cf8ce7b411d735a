// Package events records inventory domain events in the transactional
// outbox together with the state change that caused them.
package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/ltb-sync/internal/database"
	"github.com/maltedev/ltb-sync/internal/models"
)

type Transactor interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

type ItemRepo interface {
	List(ctx context.Context) ([]models.InventoryItem, error)
	UpdateWithTx(ctx context.Context, tx pgx.Tx, id string, patch models.ItemPatch) error
}

// InventoryStore is the sync's view of the inventory. Every write-back
// commits the row update and its outbox event atomically.
type InventoryStore struct {
	tx        Transactor
	items     ItemRepo
	publisher *Publisher
	logger    *slog.Logger
}

// NewInventoryStore wires the store onto a Postgres connection.
func NewInventoryStore(db *database.DB, logger *slog.Logger) *InventoryStore {
	return &InventoryStore{
		tx:        db,
		items:     database.NewItemRepository(db),
		publisher: NewPublisher(database.NewOutboxRepository(db), logger),
		logger:    logger.With("component", "inventory_store"),
	}
}

func (s *InventoryStore) ListItems(ctx context.Context) ([]models.InventoryItem, error) {
	items, err := s.items.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	return items, nil
}

func (s *InventoryStore) UpdateItem(ctx context.Context, item models.InventoryItem, patch models.ItemPatch) error {
	err := s.tx.Transaction(ctx, func(tx pgx.Tx) error {
		if err := s.items.UpdateWithTx(ctx, tx, item.ID, patch); err != nil {
			return err
		}
		return s.publisher.PublishPriceRefreshedWithTx(ctx, tx, NewPriceRefreshedPayload(item, patch))
	})
	if err != nil {
		return fmt.Errorf("update item %s: %w", item.ID, err)
	}

	s.logger.Debug("item updated",
		"item_id", item.ID,
		"status", patch.Source,
	)
	return nil
}
