package matcher

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/maltedev/ltb-sync/internal/measure"
	"github.com/maltedev/ltb-sync/internal/models"
	"github.com/maltedev/ltb-sync/internal/scraper"
)

// Price fields probed in an API response, in order.
var apiPricePaths = [][]string{
	{"price"},
	{"product", "price"},
	{"data", "price"},
	{"currentPrice"},
}

var nonNumericRegex = regexp.MustCompile(`[^\d.,-]`)

// probeAPI tries the JSON endpoints for the product id found in link.
func (r *Resolver) probeAPI(ctx context.Context, link string) (*models.Match, bool) {
	id := scraper.ProductID(link)
	if id == "" {
		return nil, false
	}

	for _, endpoint := range r.remote.APICandidates(id) {
		page, err := r.fetcher.FetchJSON(ctx, endpoint)
		if err != nil {
			r.logger.Debug("api candidate failed", "url", endpoint, "error", err)
			continue
		}
		if !page.IsJSON() {
			continue
		}

		var body map[string]any
		if err := json.Unmarshal(page.Body, &body); err != nil {
			r.logger.Debug("api candidate returned invalid json", "url", endpoint, "error", err)
			continue
		}

		if price, ok := priceFromJSON(body); ok {
			available := true
			return &models.Match{URL: link, Price: &price, Available: &available}, true
		}
	}
	return nil, false
}

func priceFromJSON(body map[string]any) (float64, bool) {
	for _, path := range apiPricePaths {
		if price, ok := numericPrice(lookup(body, path)); ok {
			return price, true
		}
	}
	return 0, false
}

func lookup(body map[string]any, path []string) any {
	var cur any = body
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

// numericPrice accepts JSON numbers and strings such as "12,50 ₾".
func numericPrice(v any) (float64, bool) {
	switch p := v.(type) {
	case float64:
		return measure.NormalizePrice(p)
	case string:
		return measure.ParsePriceText(nonNumericRegex.ReplaceAllString(p, ""))
	default:
		return 0, false
	}
}
