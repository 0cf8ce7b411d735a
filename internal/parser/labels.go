package parser

import (
	"regexp"
	"sort"
	"strings"
)

// CountryLabel is the target-locale label under which the country of
// origin is stored in the specs map.
const CountryLabel = "Страна происхождения"

const countrySourceLabel = "წარმოშობის ქვეყანა"

// specLabels maps Georgian attribute labels to Russian ones.
var specLabels = map[string]string{
	"ფერი":             "Цвет",
	"ბრენდი":           "Бренд",
	"მასალა":           "Материал",
	"წონა":             "Вес",
	countrySourceLabel: CountryLabel,
	"კლასი":            "Класс",
}

// specValues maps known Georgian attribute values to Russian ones.
var specValues = map[string]string{
	"თეთრი":            "Белый",
	"თურქეთი":          "Турция",
	"ავსტრია":          "Австрия",
	"გერმანია":         "Германия",
	"მეტალი+პლასტმასი": "Металл+пластик",
	"სტანდარტი":        "Стандарт",
}

// TranslateLabel returns the Russian label for a Georgian one, or the
// input unchanged.
func TranslateLabel(label string) string {
	if v, ok := specLabels[label]; ok {
		return v
	}
	return label
}

// TranslateValue returns the Russian value for a known Georgian one, or
// the input unchanged.
func TranslateValue(value string) string {
	if v, ok := specValues[value]; ok {
		return v
	}
	return value
}

// specLabelAlternation is the regexp alternation of every known label,
// longest first.
func specLabelAlternation() string {
	labels := make([]string, 0, len(specLabels))
	for label := range specLabels {
		labels = append(labels, regexp.QuoteMeta(label))
	}
	sort.Slice(labels, func(i, j int) bool {
		if len(labels[i]) != len(labels[j]) {
			return len(labels[i]) > len(labels[j])
		}
		return labels[i] < labels[j]
	})
	return strings.Join(labels, "|")
}
