package site

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// attributeCount is the number of attributes that decide whether a page is a
// complete product: barcode, price, weight and dimensions.
const attributeCount = 4

// Extraction holds the raw product attributes read from a page.
type Extraction struct {
	Name         string
	Barcode      string
	Price        json.Number
	WeightGrams  int
	DimensionsMM []int
}

// Found returns how many of the four product attributes were extracted.
func (e Extraction) Found() int {
	n := 0
	if e.Barcode != "" {
		n++
	}
	if e.Price != "" {
		n++
	}
	if e.WeightGrams > 0 {
		n++
	}
	if len(e.DimensionsMM) > 0 {
		n++
	}
	return n
}

// Extractor reads product attributes from a parsed page.
type Extractor interface {
	Extract(doc *goquery.Document) Extraction
}

// FieldRule locates one value in a page. Without a Label the first element
// matched by Selector is used, reading Attr when set and the text otherwise.
// With a Label, Selector matches label/value rows and the row whose label
// contains Label yields the value.
type FieldRule struct {
	Selector string `mapstructure:"selector"`
	Attr     string `mapstructure:"attr"`
	Label    string `mapstructure:"label"`
}

// ExtractorRules configures a SelectorExtractor.
type ExtractorRules struct {
	Title         FieldRule `mapstructure:"title"`
	Barcode       FieldRule `mapstructure:"barcode"`
	Price         FieldRule `mapstructure:"price"`
	Weight        FieldRule `mapstructure:"weight"`
	Dimensions    FieldRule `mapstructure:"dimensions"`
	WeightUnit    string    `mapstructure:"weight_unit"`
	DimensionUnit string    `mapstructure:"dimension_unit"`
}

// SelectorExtractor extracts product attributes with CSS selector rules.
type SelectorExtractor struct {
	rules ExtractorRules
}

var _ Extractor = (*SelectorExtractor)(nil)

// NewSelectorExtractor builds an extractor from rules.
func NewSelectorExtractor(rules ExtractorRules) *SelectorExtractor {
	return &SelectorExtractor{rules: rules}
}

// Extract implements Extractor.
func (e *SelectorExtractor) Extract(doc *goquery.Document) Extraction {
	var out Extraction
	out.Name = lookup(doc, e.rules.Title)
	if fields := strings.Fields(lookup(doc, e.rules.Barcode)); len(fields) > 0 {
		out.Barcode = fields[0]
	}
	if raw := lookup(doc, e.rules.Price); raw != "" {
		if price, err := DollarsToDecimal(raw); err == nil {
			out.Price = price
		}
	}
	if raw := lookup(doc, e.rules.Weight); raw != "" {
		if grams, ok := ParseWeightGrams(raw, e.rules.WeightUnit); ok {
			out.WeightGrams = grams
		}
	}
	if raw := lookup(doc, e.rules.Dimensions); raw != "" {
		out.DimensionsMM = ParseDimensionsMM(raw, e.rules.DimensionUnit)
	}
	return out
}

func lookup(doc *goquery.Document, rule FieldRule) string {
	if rule.Selector == "" {
		return ""
	}
	sel := doc.Find(rule.Selector)
	if rule.Label != "" {
		return labelled(sel, rule.Label)
	}
	first := sel.First()
	if rule.Attr != "" {
		v, _ := first.Attr(rule.Attr)
		return collapseSpace(v)
	}
	return collapseSpace(first.Text())
}

func labelled(rows *goquery.Selection, label string) string {
	want := strings.ToLower(label)
	var value string
	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		key := collapseSpace(row.Find("th, dt, .a-text-bold").First().Text())
		if key == "" || !strings.Contains(strings.ToLower(key), want) {
			return true
		}
		value = collapseSpace(row.Find("td, dd").First().Text())
		if value == "" {
			value = strings.TrimSpace(strings.TrimPrefix(collapseSpace(row.Text()), key))
		}
		value = strings.Trim(value, " :\u200e\u200f")
		return false
	})
	return value
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
