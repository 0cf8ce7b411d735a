package parser

import (
	"regexp"
	"strings"

	"github.com/maltedev/ltb-sync/internal/measure"
	"github.com/maltedev/ltb-sync/internal/models"
)

var (
	titleRegex   = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	ogTitleRegex = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:title["'][^>]+content=["']([^"']+)["']`)
	h1Regex      = regexp.MustCompile(`(?i)<h1[^>]*>([^<]+)</h1>`)

	schemaSKURegex   = regexp.MustCompile(`schema\.org/sku[\s\S]{0,80}?"@value"\s*:\s*"([^"]+)"`)
	zeroArticleRegex = regexp.MustCompile(`>\s*(0\d{8,})\s*<`)
	jsonArticleRegex = regexp.MustCompile(`"(?:sku|article)"\s*:\s*"?(\d{6,})`)

	separatedDimsRegex    = regexp.MustCompile(`(?i)(?:^|\D)(\d{3,4})\s*[*×x]\s*(\d{3,4})(?:\s*[*×x]\s*(\d{1,4}))?`)
	concatenatedDimsRegex = regexp.MustCompile(`(?i)(?:^|\D)(\d{4})(\d{4})(\d{2,4})\s*(?:mm|мм)`)
	slugRegex             = regexp.MustCompile(`productview/\d+-([^/?#]+)`)
	slugSeparatedRegex    = regexp.MustCompile(`(?i)(?:^|\D)(\d{4})\s*[*×x]\s*(\d{4})(?:\s*[*×x]\s*(\d{2,4}))?`)

	countryLabelRegex = regexp.MustCompile(regexp.QuoteMeta(countrySourceLabel) + `\s*:\s*([^<\s,]+)`)
	countryOfOrigin   = regexp.MustCompile(`"countryOfOrigin"[^"]*"([^"]+)"`)
	countryJSONRegex  = regexp.MustCompile(`"country"\s*:\s*"([^"]+)"`)

	schemaImageRegex = regexp.MustCompile(`schema\.org/image[\s\S]{0,200}?"@id"\s*:\s*"([^"]+)"`)
	ogImageRegex     = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:image["'][^>]+content=["']([^"']+)["']`)

	specRegex        = regexp.MustCompile(`(` + specLabelAlternation() + `)\s*:\s*([^\s<",;]+(?:\+[^\s<",;]+)*)`)
	descriptionRegex = regexp.MustCompile(`schema\.org/description[\s\S]{0,300}?"@value"\s*:\s*"([^"]+)"`)
)

var (
	extractName = firstOf(
		submatch(titleRegex),
		submatch(ogTitleRegex),
		submatch(h1Regex),
	)

	extractArticle = firstOf(
		submatch(schemaSKURegex),
		submatch(zeroArticleRegex),
		submatch(jsonArticleRegex),
	)

	extractDimensions = firstOf(
		dimensions(separatedDimsRegex),
		dimensions(concatenatedDimsRegex),
	)

	extractSlugDimensions = firstOf(
		dimensions(slugSeparatedRegex),
		dimensions(concatenatedDimsRegex),
	)

	extractCountry = firstOf(
		submatch(countryLabelRegex),
		submatch(countryOfOrigin),
		submatch(countryJSONRegex),
	)

	extractPhoto = firstOf(
		submatch(schemaImageRegex),
		submatch(ogImageRegex),
	)
)

// dimensions formats the captured components as "A×B" or "A×B×C". Every
// present component must be positive.
func dimensions(re *regexp.Regexp) extractor[string] {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		parts := make([]string, 0, 3)
		for _, p := range m[1:] {
			if p == "" {
				continue
			}
			if strings.Trim(p, "0") == "" {
				return "", false
			}
			parts = append(parts, strings.TrimLeft(p, "0"))
		}
		if len(parts) < 2 {
			return "", false
		}
		return strings.Join(parts, "×"), true
	}
}

// DimensionsFromURL reads dimensions from the slug of a product URL such as
// ".../productview/32054-ldsp-2800122018mm".
func DimensionsFromURL(url string) (string, bool) {
	m := slugRegex.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return extractSlugDimensions(m[1])
}

// ExtractProduct reads a full record from one product page.
func ExtractProduct(page, url string) *models.ExtractedProductData {
	data := &models.ExtractedProductData{URL: url}

	data.Name, _ = extractName(page)
	data.Article, _ = extractArticle(page)

	if dims, ok := extractDimensions(page); ok {
		data.Dimensions = dims
	} else if dims, ok := DimensionsFromURL(url); ok {
		data.Dimensions = dims
	}

	if price, ok := extractPrice(page); ok {
		if measure.IsSheetLike(data.Dimensions) {
			data.CostPerSheet = &price
			data.CostPerM2 = measure.CostPerAreaFromSheet(price, data.Dimensions)
		} else {
			data.CostPerPiece = &price
		}
	}

	if country, ok := extractCountry(page); ok {
		data.Country = TranslateValue(country)
	}
	data.PhotoURL, _ = extractPhoto(page)

	data.Extra = extractSpecs(page)
	if data.Country != "" {
		if _, ok := data.Extra[CountryLabel]; !ok {
			data.Extra[CountryLabel] = data.Country
		}
	}

	return data
}

// extractSpecs scans the body and then the structured description for
// known "label: value" pairs. The first occurrence of a label wins.
func extractSpecs(page string) map[string]string {
	specs := make(map[string]string)
	collect := func(text string) {
		for _, m := range specRegex.FindAllStringSubmatch(text, -1) {
			label := TranslateLabel(strings.TrimSpace(m[1]))
			value := cleanText(m[2])
			if value == "" {
				continue
			}
			if _, seen := specs[label]; seen {
				continue
			}
			specs[label] = TranslateValue(value)
		}
	}

	collect(page)
	if m := descriptionRegex.FindStringSubmatch(page); m != nil {
		collect(m[1])
	}
	return specs
}
