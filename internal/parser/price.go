package parser

import (
	"regexp"
	"strings"

	"github.com/maltedev/ltb-sync/internal/measure"
)

// amountPattern is a whole amount, optionally grouped in thousands by
// spaces, no-break spaces or &nbsp; entities.
const amountPattern = `(-?\d{1,3}(?:(?:[ \x{00A0}]|&nbsp;)\d{3})+|-?\d+)`

var groupSeparators = strings.NewReplacer(" ", "", "\u00a0", "", "&nbsp;", "")

// The leading class keeps the currency patterns from starting in the middle
// of a longer number; the sign is captured so negatives are rejected.
var (
	schemaPriceRegex   = regexp.MustCompile(`schema\.org/price[\s\S]{0,300}?"@value"\s*:\s*"(-?\d+(?:[.,]\d+)?)"`)
	itempropPriceRegex = regexp.MustCompile(`itemprop=["']price["'][^>]*?content=["'](-?\d+(?:[.,]\d+)?)["']`)
	dotCurrencyRegex   = regexp.MustCompile(`(?:^|[^\d.,])` + amountPattern + `\s*\.\s*(\d{1,2})\s*₾`)
	commaCurrencyRegex = regexp.MustCompile(`(?:^|[^\d.,])` + amountPattern + `(?:\s*,\s*(\d{1,2}))?\s*₾`)
	jsonPriceRegex     = regexp.MustCompile(`"price"\s*:\s*"?(-?\d+(?:[.,]\d+)?)`)
	currentPriceRegex  = regexp.MustCompile(`"currentPrice"\s*:\s*"?(-?\d+(?:[.,]\d+)?)`)

	availabilityRegex = regexp.MustCompile(`(?i)კალათაში|добавить|add to cart|\bbuy\b|в корзину`)
)

func decimalPrice(re *regexp.Regexp) extractor[float64] {
	return func(text string) (float64, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return 0, false
		}
		return measure.ParsePriceText(m[1])
	}
}

func currencyPrice(re *regexp.Regexp) extractor[float64] {
	return func(text string) (float64, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return 0, false
		}
		return parseAmount(m[1], m[2])
	}
}

// parseAmount parses a whole part that may carry thousands separators.
func parseAmount(whole, fraction string) (float64, bool) {
	return measure.ParsePrice(groupSeparators.Replace(whole), fraction)
}

var extractPrice = firstOf(
	decimalPrice(schemaPriceRegex),
	decimalPrice(itempropPriceRegex),
	currencyPrice(dotCurrencyRegex),
	currencyPrice(commaCurrencyRegex),
	decimalPrice(jsonPriceRegex),
	decimalPrice(currentPriceRegex),
)

// ExtractPrice returns the first acceptable price on a product page.
func ExtractPrice(page string) (float64, bool) {
	return extractPrice(page)
}

// PageOffer is what the page strategy reads from a product page.
type PageOffer struct {
	Price     *float64
	Available bool
}

// ExtractOffer reads price and availability from a product page. A page
// is considered available when it carries an add-to-cart phrase or a price.
func ExtractOffer(page string) PageOffer {
	var offer PageOffer
	if p, ok := extractPrice(page); ok {
		offer.Price = &p
	}
	offer.Available = offer.Price != nil || availabilityRegex.MatchString(page)
	return offer
}
