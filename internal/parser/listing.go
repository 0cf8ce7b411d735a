package parser

import (
	"regexp"
	"strings"

	"github.com/maltedev/ltb-sync/internal/models"
)

const productPath = "/ge/shop/productview/"

var (
	listingMarkerRegex  = regexp.MustCompile(`<a\s+href="/ge/shop/productview/`)
	listingURLTailRegex = regexp.MustCompile(`^([^"]+)`)
	listingArticleRegex = regexp.MustCompile(`>\s*(\d{6,})\s*<`)
	listingPriceRegex   = regexp.MustCompile(`(?:^|[^\d.,])` + amountPattern + `(?:\s*[.,]\s*(\d{1,2}))?\s*₾`)
)

// ParseListing scans a catalog listing page for product teasers. The page
// is split on the product anchor marker; each fragment after the first is
// searched for the URL tail, an article of six or more digits and a price
// followed by the currency sign. Fragments yielding none of the three are
// dropped.
func ParseListing(page, baseURL string) []models.RemoteProductRecord {
	fragments := listingMarkerRegex.Split(page, -1)
	if len(fragments) < 2 {
		return nil
	}

	baseURL = strings.TrimRight(baseURL, "/")
	records := make([]models.RemoteProductRecord, 0, len(fragments)-1)
	for _, fragment := range fragments[1:] {
		var record models.RemoteProductRecord

		if m := listingURLTailRegex.FindStringSubmatch(fragment); m != nil {
			if tail := strings.TrimSpace(m[1]); tail != "" {
				record.URL = baseURL + productPath + tail
			}
		}
		if m := listingArticleRegex.FindStringSubmatch(fragment); m != nil {
			record.Article = m[1]
		}
		if m := listingPriceRegex.FindStringSubmatch(fragment); m != nil {
			if p, ok := parseAmount(m[1], m[2]); ok {
				record.Price = &p
			}
		}

		if record.URL == "" && record.Article == "" && record.Price == nil {
			continue
		}
		records = append(records, record)
	}
	return records
}
