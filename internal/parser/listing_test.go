package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func TestParseListing_Fixture(t *testing.T) {
	records := ParseListing(readFixture(t, "listing.html"), "https://ltb.ge")
	require.Len(t, records, 4)

	assert.Equal(t, "https://ltb.ge/ge/shop/productview/32054-ldsp-egger-white-2800122018mm", records[0].URL)
	assert.Equal(t, "000014841", records[0].Article)
	require.NotNil(t, records[0].Price)
	assert.Equal(t, 196.26, *records[0].Price)

	assert.Equal(t, "https://ltb.ge/ge/shop/productview/1-x", records[1].URL)
	assert.Equal(t, "123456", records[1].Article)
	require.NotNil(t, records[1].Price)
	assert.Equal(t, 45.5, *records[1].Price)

	assert.Equal(t, "https://ltb.ge/ge/shop/productview/777-hinge-blum?variant=2", records[2].URL)
	assert.Empty(t, records[2].Article)
	require.NotNil(t, records[2].Price)
	assert.Equal(t, 12.0, *records[2].Price)

	assert.Equal(t, "888888", records[3].Article)
	assert.Nil(t, records[3].Price, "negative prices are rejected")
}

func TestParseListing(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		expected int
	}{
		{name: "no marker", page: "<html><body>nothing here</body></html>", expected: 0},
		{name: "empty page", page: "", expected: 0},
		{name: "content before the first marker is ignored", page: `123456 <b>9 ₾</b><a href="/ge/shop/productview/5-a">x</a>`, expected: 1},
		{name: "two teasers", page: `<a href="/ge/shop/productview/1-a">1 ₾</a><a  href="/ge/shop/productview/2-b">2 ₾</a>`, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, ParseListing(tt.page, "https://ltb.ge"), tt.expected)
		})
	}
}

func TestParseListing_FirstPriceWins(t *testing.T) {
	page := `<a href="/ge/shop/productview/9-z">teaser</a><s>10,00 ₾</s><b>8,50 ₾</b>`
	records := ParseListing(page, "https://ltb.ge/")
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Price)
	assert.Equal(t, 10.0, *records[0].Price)
	assert.Equal(t, "https://ltb.ge/ge/shop/productview/9-z", records[0].URL)
}

func TestParseListing_GroupedPrice(t *testing.T) {
	page := `<a href="/ge/shop/productview/9-z">teaser</a><span>123456</span><b>1 250,00 ₾</b>`
	records := ParseListing(page, "https://ltb.ge")
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Price)
	assert.Equal(t, 1250.0, *records[0].Price)
	assert.Equal(t, "123456", records[0].Article)
}

func TestParseListing_RejectsOutOfRangePrice(t *testing.T) {
	page := `<a href="/ge/shop/productview/9-z">teaser</a><b>2000000 ₾</b>`
	records := ParseListing(page, "https://ltb.ge")
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Price)
}
