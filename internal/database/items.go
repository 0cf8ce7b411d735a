package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/ltb-sync/internal/models"
)

var ErrItemNotFound = errors.New("item not found")

// ItemRepository reads and patches rows of the inventory items table.
type ItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// List returns every item in a stable order.
func (r *ItemRepository) List(ctx context.Context) ([]models.InventoryItem, error) {
	query := `
		SELECT id::text, name, article, link, remote_url, dimensions
		FROM items
		ORDER BY name, id`

	rows, err := r.db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []models.InventoryItem
	for rows.Next() {
		var item models.InventoryItem
		var article, link, remoteURL, dimensions *string
		if err := rows.Scan(&item.ID, &item.Name, &article, &link, &remoteURL, &dimensions); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Article = deref(article)
		item.Link = deref(link)
		item.RemoteURL = deref(remoteURL)
		item.Dimensions = deref(dimensions)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

// UpdateWithTx applies the patch to one row inside tx.
func (r *ItemRepository) UpdateWithTx(ctx context.Context, tx pgx.Tx, id string, patch models.ItemPatch) error {
	query, args := buildUpdate(id, patch)

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return nil
}

// buildUpdate renders the UPDATE statement for a patch. The remote price,
// availability and timestamp are always set; the other columns only when
// the patch carries a value.
func buildUpdate(id string, patch models.ItemPatch) (string, []interface{}) {
	sets := []string{"remote_price = $1", "remote_available = $2", "remote_updated_at = $3"}
	args := []interface{}{patch.RemotePrice, patch.RemoteAvailable, patch.RemoteUpdatedAt}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.CostPerSheet != nil {
		add("cost_per_sheet", *patch.CostPerSheet)
	}
	if patch.CostPerM2 != nil {
		add("cost_per_m2", *patch.CostPerM2)
	}
	if patch.RemoteURL != nil {
		add("remote_url", *patch.RemoteURL)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE items SET %s WHERE id::text = $%d", strings.Join(sets, ", "), len(args))
	return query, args
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
