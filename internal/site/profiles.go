package site

import (
	"fmt"
	"sort"
)

const amazonDetailRows = "#productDetails_techSpec_section_1 tr, " +
	"#productDetails_detailBullets_sections1 tr, " +
	"#detailBullets_feature_div li"

var profiles = map[string]ExtractorRules{
	"amazon.com": {
		Title:         FieldRule{Selector: "#productTitle"},
		Barcode:       FieldRule{Selector: amazonDetailRows, Label: "UPC"},
		Price:         FieldRule{Selector: "#priceblock_ourprice, #corePrice_feature_div .a-offscreen, .a-price .a-offscreen"},
		Weight:        FieldRule{Selector: amazonDetailRows, Label: "Item Weight"},
		Dimensions:    FieldRule{Selector: amazonDetailRows, Label: "Product Dimensions"},
		WeightUnit:    "lb",
		DimensionUnit: "in",
	},
	"microdata": {
		Title:         FieldRule{Selector: `[itemprop="name"]`},
		Barcode:       FieldRule{Selector: `[itemprop="gtin13"], [itemprop="gtin12"], [itemprop="gtin"]`, Attr: "content"},
		Price:         FieldRule{Selector: `[itemprop="price"]`, Attr: "content"},
		Weight:        FieldRule{Selector: `[itemprop="weight"]`},
		Dimensions:    FieldRule{Selector: `[itemprop="depth"], [itemprop="size"]`},
		WeightUnit:    "g",
		DimensionUnit: "mm",
	},
}

// Profile returns the built-in extractor rules registered under name.
func Profile(name string) (ExtractorRules, bool) {
	rules, ok := profiles[name]
	return rules, ok
}

// ProfileNames lists the built-in profiles.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultProfile is used for domains that name no profile.
const DefaultProfile = "microdata"

// ResolveRules starts from the named profile (DefaultProfile when empty) and
// applies every non-empty override.
func ResolveRules(profile string, override ExtractorRules) (ExtractorRules, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	rules, ok := Profile(profile)
	if !ok {
		return ExtractorRules{}, fmt.Errorf("unknown extractor profile %q (have %v)", profile, ProfileNames())
	}
	rules.Title = mergeField(rules.Title, override.Title)
	rules.Barcode = mergeField(rules.Barcode, override.Barcode)
	rules.Price = mergeField(rules.Price, override.Price)
	rules.Weight = mergeField(rules.Weight, override.Weight)
	rules.Dimensions = mergeField(rules.Dimensions, override.Dimensions)
	if override.WeightUnit != "" {
		rules.WeightUnit = override.WeightUnit
	}
	if override.DimensionUnit != "" {
		rules.DimensionUnit = override.DimensionUnit
	}
	return rules, nil
}

// A rule with a selector replaces the base rule entirely.
func mergeField(base, override FieldRule) FieldRule {
	if override.Selector == "" {
		return base
	}
	return override
}
