// Package measure holds the numeric helpers shared by the extractor and the
// sync: dimension parsing, the sheet-goods classifier and cent rounding.
// Dimensions are millimetres; areas are square metres.
package measure

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxPrice is the exclusive upper bound for any accepted remote price.
const MaxPrice = 1_000_000

const (
	minThicknessMM = 1
	maxThicknessMM = 100
	minSideMM      = 500
)

var (
	separatorRegex     = regexp.MustCompile(`[\s,;]+`)
	leadingNumberRegex = regexp.MustCompile(`^\d+(?:\.\d+)?`)
	thousand           = decimal.NewFromInt(1000)
)

// Components returns the positive numbers found in a dimension string such
// as "2800×1220×18", "2800*1220" or "2800 x 1220, 18mm", in order.
func Components(dimensions string) []float64 {
	s := strings.TrimSpace(dimensions)
	if s == "" {
		return nil
	}
	s = strings.NewReplacer("×", " ", "*", " ", "x", " ", "X", " ").Replace(s)

	var numbers []float64
	for _, token := range separatorRegex.Split(s, -1) {
		lead := leadingNumberRegex.FindString(token)
		if lead == "" {
			continue
		}
		n, err := strconv.ParseFloat(lead, 64)
		if err != nil || n <= 0 {
			continue
		}
		numbers = append(numbers, n)
	}
	return numbers
}

// ParseAreaM2 returns length×width in m² from the first two components, or
// false when fewer than two positive numbers are present.
func ParseAreaM2(dimensions string) (float64, bool) {
	area, ok := areaDecimal(dimensions)
	if !ok {
		return 0, false
	}
	return area.InexactFloat64(), true
}

func areaDecimal(dimensions string) (decimal.Decimal, bool) {
	parts := Components(dimensions)
	if len(parts) < 2 {
		return decimal.Zero, false
	}
	length := decimal.NewFromFloat(parts[0]).Div(thousand)
	width := decimal.NewFromFloat(parts[1]).Div(thousand)
	area := length.Mul(width)
	if !area.IsPositive() {
		return decimal.Zero, false
	}
	return area, true
}

// IsSheetLike reports whether the dimensions describe a flat panel: exactly
// three components, the smallest (thickness) within [1,100] mm and the
// other two at least 500 mm each.
func IsSheetLike(dimensions string) bool {
	parts := Components(dimensions)
	if len(parts) != 3 {
		return false
	}
	sorted := append([]float64(nil), parts...)
	sort.Float64s(sorted)

	thickness := sorted[0]
	if thickness < minThicknessMM || thickness > maxThicknessMM {
		return false
	}
	return sorted[1] >= minSideMM && sorted[2] >= minSideMM
}

// CostPerAreaFromSheet converts a per-sheet price into a per-m² price,
// rounded half-up to the cent. It returns nil when the price is not
// positive or the area cannot be parsed.
func CostPerAreaFromSheet(costPerSheet float64, dimensions string) *float64 {
	if costPerSheet <= 0 {
		return nil
	}
	area, ok := areaDecimal(dimensions)
	if !ok {
		return nil
	}
	cost := decimal.NewFromFloat(costPerSheet).Div(area).Round(2).InexactFloat64()
	return &cost
}

// RoundCents rounds half-up to two decimals.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// NormalizePrice accepts a candidate price when 0 <= v < MaxPrice and
// returns it rounded to the cent.
func NormalizePrice(v float64) (float64, bool) {
	if v < 0 || v >= MaxPrice || v != v {
		return 0, false
	}
	return RoundCents(v), true
}

// ParsePrice parses a captured integer part and optional fractional part,
// for example ("196", "26"), then normalizes it.
func ParsePrice(whole, fraction string) (float64, bool) {
	if fraction == "" {
		fraction = "0"
	}
	v, err := strconv.ParseFloat(whole+"."+fraction, 64)
	if err != nil {
		return 0, false
	}
	return NormalizePrice(v)
}

// ParsePriceText parses a single decimal token that may use a comma as the
// decimal separator, e.g. "196,26" or "196.26".
func ParsePriceText(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return NormalizePrice(v)
}
