// Package sitemap reads sitemap and sitemap-index documents.
package sitemap

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/JakeFAU/product-crawler/internal/canonical"
)

// ErrNotSitemap is returned for XML documents that are neither a URL set nor
// a sitemap index.
var ErrNotSitemap = errors.New("document is not a sitemap")

// Kind distinguishes the two sitemap document types.
type Kind int

// Sitemap kinds.
const (
	KindURLSet Kind = iota + 1
	KindIndex
)

func (k Kind) String() string {
	switch k {
	case KindURLSet:
		return "urlset"
	case KindIndex:
		return "sitemapindex"
	default:
		return "unknown"
	}
}

// Sitemap is a parsed sitemap document.
type Sitemap struct {
	Kind Kind
	// Locations holds the page URLs of a URL set or the child sitemap URLs
	// of an index, in document order.
	Locations []string
}

// Parse reads body as a sitemap. Relative locations are resolved against base.
func Parse(base string, body []byte) (Sitemap, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return Sitemap{}, fmt.Errorf("parse sitemap %s: %w", base, err)
	}
	var (
		kind Kind
		expr string
	)
	switch {
	case xmlquery.FindOne(doc, "//sitemapindex") != nil:
		kind, expr = KindIndex, "//sitemapindex/sitemap/loc"
	case xmlquery.FindOne(doc, "//urlset") != nil:
		kind, expr = KindURLSet, "//urlset/url/loc"
	default:
		return Sitemap{}, fmt.Errorf("%s: %w", base, ErrNotSitemap)
	}

	locations := make([]string, 0, 64)
	for _, n := range xmlquery.Find(doc, expr) {
		loc := strings.TrimSpace(n.InnerText())
		if loc == "" {
			continue
		}
		if !strings.Contains(loc, "://") && base != "" {
			loc = canonical.Resolve(base, loc)
			if loc == "" {
				continue
			}
		}
		locations = append(locations, loc)
	}
	return Sitemap{Kind: kind, Locations: locations}, nil
}
