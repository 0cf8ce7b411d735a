package models

import (
	"strings"
	"time"
)

// InventoryItem is the projection of an inventory row the sync reads.
// Empty strings stand for absent optional values.
type InventoryItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Article    string `json:"article,omitempty"`
	Link       string `json:"link,omitempty"`
	RemoteURL  string `json:"remote_url,omitempty"`
	Dimensions string `json:"dimensions,omitempty"`
}

// ReferenceURL is the URL used to reach the item on the remote catalog:
// the canonical remote URL when known, otherwise the user supplied link.
func (i InventoryItem) ReferenceURL() string {
	if u := strings.TrimSpace(i.RemoteURL); u != "" {
		return u
	}
	return strings.TrimSpace(i.Link)
}

// ItemPatch is a partial update of an inventory row. RemotePrice,
// RemoteAvailable and RemoteUpdatedAt are always written; the pointer
// fields only when non-nil. Source is not stored on the row; it names the
// status of the strategy that produced the patch.
type ItemPatch struct {
	RemotePrice     *float64  `json:"remote_price"`
	RemoteAvailable bool      `json:"remote_available"`
	RemoteUpdatedAt time.Time `json:"remote_updated_at"`
	CostPerSheet    *float64  `json:"cost_per_sheet,omitempty"`
	CostPerM2       *float64  `json:"cost_per_m2,omitempty"`
	RemoteURL       *string   `json:"remote_url,omitempty"`
	Source          Status    `json:"-"`
}

// RemoteProductRecord is one teaser scraped from the catalog listing page.
// It lives for the duration of a single sync run.
type RemoteProductRecord struct {
	URL     string   `json:"url,omitempty"`
	Article string   `json:"article,omitempty"`
	Price   *float64 `json:"price"`
}

// ExtractedProductData is everything the product page extractor could
// recover from one product page.
type ExtractedProductData struct {
	Name         string            `json:"name"`
	Article      string            `json:"article"`
	Dimensions   string            `json:"dimensions"`
	CostPerSheet *float64          `json:"cost_per_sheet"`
	CostPerM2    *float64          `json:"cost_per_m2"`
	CostPerPiece *float64          `json:"cost_per_piece"`
	Country      string            `json:"country"`
	PhotoURL     string            `json:"photo_url"`
	Extra        map[string]string `json:"extra"`
	URL          string            `json:"link"`
}

// Price returns whichever of the sheet or piece price is populated.
func (d *ExtractedProductData) Price() *float64 {
	if d.CostPerSheet != nil {
		return d.CostPerSheet
	}
	return d.CostPerPiece
}
