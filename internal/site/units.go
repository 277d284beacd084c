package site

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

var (
	dollarPrefix = regexp.MustCompile(`[$]\s?`)
	numberToken  = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

// DollarsToDecimal parses a dollar amount such as "$ 12.99". Any text
// containing "free" is zero.
func DollarsToDecimal(value string) (json.Number, error) {
	if strings.Contains(strings.ToLower(value), "free") {
		return json.Number("0"), nil
	}
	cleaned := strings.TrimSpace(dollarPrefix.ReplaceAllString(value, ""))
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return "", fmt.Errorf("empty price")
	}
	if _, ok := new(big.Rat).SetString(cleaned); !ok {
		return "", fmt.Errorf("invalid price %q", value)
	}
	return json.Number(cleaned), nil
}

// PoundsToGrams converts pounds to whole grams, truncating.
func PoundsToGrams(pounds float64) int {
	return int(pounds * 453.59237)
}

// OuncesToGrams converts ounces to whole grams, truncating.
func OuncesToGrams(ounces float64) int {
	return int(ounces * 28.349523125)
}

// KilogramsToGrams converts kilograms to whole grams, truncating.
func KilogramsToGrams(kg float64) int {
	return int(math.Round(kg*1e6) / 1e3)
}

// InchesToMillimetres converts inches to whole millimetres, truncating.
func InchesToMillimetres(inches float64) int {
	return int(inches * 25.4)
}

// CentimetresToMillimetres converts centimetres to whole millimetres, truncating.
func CentimetresToMillimetres(cm float64) int {
	return int(math.Round(cm*1e4) / 1e3)
}

// ParseWeightGrams reads a weight such as "1.5 pounds" or "300 g".
// defaultUnit applies when the text carries no unit.
func ParseWeightGrams(text, defaultUnit string) (int, bool) {
	values := numbers(text)
	if len(values) == 0 {
		return 0, false
	}
	v := values[0]
	switch unit := detectUnit(text, defaultUnit); unit {
	case "lb":
		return PoundsToGrams(v), true
	case "oz":
		return OuncesToGrams(v), true
	case "kg":
		return KilogramsToGrams(v), true
	case "g":
		return int(v), true
	default:
		return 0, false
	}
}

// ParseDimensionsMM reads dimensions such as "10 x 5.5 x 2 inches". Text after
// a semicolon (a trailing weight on some pages) is ignored.
func ParseDimensionsMM(text, defaultUnit string) []int {
	text, _, _ = strings.Cut(text, ";")
	values := numbers(text)
	if len(values) == 0 {
		return nil
	}
	unit := detectUnit(text, defaultUnit)
	out := make([]int, 0, len(values))
	for _, v := range values {
		switch unit {
		case "in":
			out = append(out, InchesToMillimetres(v))
		case "cm":
			out = append(out, CentimetresToMillimetres(v))
		case "mm":
			out = append(out, int(v))
		default:
			return nil
		}
	}
	return out
}

func numbers(text string) []float64 {
	tokens := numberToken.FindAllString(text, -1)
	out := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		v, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", "."), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

var unitWords = []struct {
	unit  string
	words []string
}{
	{"kg", []string{"kilogram", "kg"}},
	{"lb", []string{"pound", "lbs", "lb"}},
	{"oz", []string{"ounce", "oz"}},
	{"mm", []string{"millimet", "mm"}},
	{"cm", []string{"centimet", "cm"}},
	{"in", []string{"inch", "in", "\""}},
	{"g", []string{"gram", "g"}},
}

func detectUnit(text, fallback string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ' ' || r == 'x' || r == '×' || (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '(' || r == ')'
	})
	for _, f := range fields {
		for _, candidate := range unitWords {
			for _, w := range candidate.words {
				if f == w || (len(w) > 2 && strings.HasPrefix(f, w)) {
					return candidate.unit
				}
			}
		}
	}
	return strings.ToLower(fallback)
}
