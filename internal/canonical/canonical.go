// Package canonical turns discovered URLs into the canonical strings used as
// frontier keys.
package canonical

import (
	"regexp"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"

	"github.com/JakeFAU/product-crawler/internal/urlpattern"
)

const (
	querySeparator    = "?"
	paramSeparator    = "&"
	keyValueSeparator = "="
)

var (
	urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())
	pageParam = regexp.MustCompile(`^page=\d*$`)
)

// Canonicalizer normalizes URLs for one domain.
type Canonicalizer struct {
	patterns   *urlpattern.Catalogue
	trimParams map[string]struct{}
}

// New builds a Canonicalizer. trimParams lists query parameters dropped by Normalize.
func New(patterns *urlpattern.Catalogue, trimParams []string) *Canonicalizer {
	trim := make(map[string]struct{}, len(trimParams))
	for _, p := range trimParams {
		if p = strings.TrimSpace(p); p != "" {
			trim[p] = struct{}{}
		}
	}
	return &Canonicalizer{patterns: patterns, trimParams: trim}
}

// Normalize applies generic URL normalization followed by parameter trimming.
// It returns "" when rawURL cannot be parsed.
func (c *Canonicalizer) Normalize(rawURL string) string {
	if strings.TrimSpace(rawURL) == "" {
		return rawURL
	}
	normalized := Basic(rawURL)
	if normalized == "" || len(c.trimParams) == 0 {
		return normalized
	}
	idx := strings.LastIndex(normalized, querySeparator)
	if idx < 0 {
		return normalized
	}
	base, query := normalized[:idx], normalized[idx+1:]
	filtered := c.filterQuery(query)
	if filtered == "" {
		return base
	}
	return base + querySeparator + filtered
}

func (c *Canonicalizer) filterQuery(query string) string {
	kept := make([]string, 0, 4)
	for _, param := range strings.Split(query, paramSeparator) {
		parts := strings.Split(param, keyValueSeparator)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]
		if strings.TrimSpace(key) == "" || strings.TrimSpace(value) == "" {
			continue
		}
		if _, drop := c.trimParams[key]; drop {
			continue
		}
		kept = append(kept, key+keyValueSeparator+value)
	}
	return strings.Join(kept, paramSeparator)
}

// TrimCategoryURL drops the page parameter of a category URL so that the
// pages of one listing share a frontier entry. The remaining parameters keep
// their order. Other URLs are returned unchanged.
func (c *Canonicalizer) TrimCategoryURL(rawURL string) string {
	prefix, _, ok := c.patterns.MatchCategory(rawURL)
	if !ok {
		return rawURL
	}
	params := strings.Split(rawURL[len(prefix):], paramSeparator)
	kept := params[:0]
	for _, param := range params {
		if pageParam.MatchString(param) || param == "" {
			continue
		}
		kept = append(kept, param)
	}
	return prefix + strings.Join(kept, paramSeparator)
}

// IsCategoryURL reports whether rawURL is a category listing page.
func (c *Canonicalizer) IsCategoryURL(rawURL string) bool {
	_, _, ok := c.patterns.MatchCategory(rawURL)
	return ok
}

// Basic lowercases scheme and host, drops default ports and fragments and
// resolves dot segments. It returns "" for unparsable input.
func Basic(rawURL string) string {
	parsed, err := urlParser.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return parsed.Href(true)
}

// Resolve resolves ref against base and normalizes the result.
func Resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := urlParser.ParseRef(base, ref)
	if err != nil {
		return ""
	}
	return parsed.Href(true)
}

// TrimHTTPS rewrites https URLs to http. Only used to build identity keys;
// fetches keep the original scheme.
func TrimHTTPS(rawURL string) string {
	if !strings.HasPrefix(rawURL, "https") {
		return rawURL
	}
	_, rest, found := strings.Cut(rawURL, "://")
	if !found {
		return rawURL
	}
	return "http://" + rest
}
