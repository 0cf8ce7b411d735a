package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/ltb-sync/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestBuildUpdate(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("minimal patch", func(t *testing.T) {
		query, args := buildUpdate("7", models.ItemPatch{RemoteUpdatedAt: ts})

		assert.Equal(t,
			"UPDATE items SET remote_price = $1, remote_available = $2, remote_updated_at = $3 WHERE id::text = $4",
			query)
		require.Len(t, args, 4)
		assert.Nil(t, args[0])
		assert.Equal(t, false, args[1])
		assert.Equal(t, ts, args[2])
		assert.Equal(t, "7", args[3])
	})

	t.Run("sheet patch", func(t *testing.T) {
		patch := models.ItemPatch{
			RemotePrice:     ptr(196.26),
			RemoteAvailable: true,
			RemoteUpdatedAt: ts,
			CostPerSheet:    ptr(196.26),
			CostPerM2:       ptr(57.45),
			RemoteURL:       ptr("https://ltb.ge/ge/shop/productview/egger-u321"),
		}
		query, args := buildUpdate("abc", patch)

		assert.Equal(t,
			"UPDATE items SET remote_price = $1, remote_available = $2, remote_updated_at = $3, "+
				"cost_per_sheet = $4, cost_per_m2 = $5, remote_url = $6 WHERE id::text = $7",
			query)
		require.Len(t, args, 7)
		assert.Equal(t, 196.26, args[3])
		assert.Equal(t, 57.45, args[4])
		assert.Equal(t, "https://ltb.ge/ge/shop/productview/egger-u321", args[5])
		assert.Equal(t, "abc", args[6])
	})

	t.Run("url only", func(t *testing.T) {
		query, args := buildUpdate("1", models.ItemPatch{
			RemoteUpdatedAt: ts,
			RemoteURL:       ptr("https://ltb.ge/ge/shop/productview/x"),
		})
		assert.Contains(t, query, "remote_url = $4 WHERE id::text = $5")
		assert.Len(t, args, 5)
	})
}

func TestDeref(t *testing.T) {
	assert.Equal(t, "", deref(nil))
	assert.Equal(t, "x", deref(ptr("x")))
}

func TestItemRepository_Integration(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewItemRepository(db)
	id := uuid.NewString()

	_, err := db.pool.Exec(ctx,
		`INSERT INTO items (id, name, article, link) VALUES ($1, $2, $3, $4)`,
		id, "Плита ДСП", "012345678", "https://ltb.ge/ge/shop/productview/plita")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.pool.Exec(context.Background(), `DELETE FROM items WHERE id = $1`, id)
	})

	items, err := repo.List(ctx)
	require.NoError(t, err)
	var found *models.InventoryItem
	for i := range items {
		if items[i].ID == id {
			found = &items[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "012345678", found.Article)
	assert.Empty(t, found.RemoteURL)

	err = db.Transaction(ctx, func(tx pgx.Tx) error {
		return repo.UpdateWithTx(ctx, tx, id, models.ItemPatch{
			RemotePrice:     ptr(12.5),
			RemoteAvailable: true,
			RemoteUpdatedAt: time.Now(),
		})
	})
	require.NoError(t, err)

	var price float64
	require.NoError(t, db.pool.QueryRow(ctx, `SELECT remote_price FROM items WHERE id = $1`, id).Scan(&price))
	assert.Equal(t, 12.5, price)

	err = db.Transaction(ctx, func(tx pgx.Tx) error {
		return repo.UpdateWithTx(ctx, tx, uuid.NewString(), models.ItemPatch{RemoteUpdatedAt: time.Now()})
	})
	assert.ErrorIs(t, err, ErrItemNotFound)
}
