package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInventoryItem_ReferenceURL(t *testing.T) {
	tests := []struct {
		name string
		item InventoryItem
		want string
	}{
		{"remote url wins", InventoryItem{Link: "https://a", RemoteURL: " https://ltb.ge/productview/1 "}, "https://ltb.ge/productview/1"},
		{"falls back to link", InventoryItem{Link: " https://ltb.ge/productview/2 ", RemoteURL: "  "}, "https://ltb.ge/productview/2"},
		{"empty", InventoryItem{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.ReferenceURL())
		})
	}
}

func TestExtractedProductData_Price(t *testing.T) {
	sheet, piece := 300.0, 12.5

	assert.Equal(t, &sheet, (&ExtractedProductData{CostPerSheet: &sheet, CostPerPiece: &piece}).Price())
	assert.Equal(t, &piece, (&ExtractedProductData{CostPerPiece: &piece}).Price())
	assert.Nil(t, (&ExtractedProductData{}).Price())
}
