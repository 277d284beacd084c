// Package urlpattern holds the domain-parameterized URL regex catalogue used
// for validity checks, filtering, product detection and category matching.
package urlpattern

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Named patterns available to domain configuration.
const (
	Valid                   = "valid"
	Media                   = "media"
	JSessionID              = "jsessionid"
	WriteReview             = "write_review"
	Assets                  = "assets"
	Mobile                  = "mobile"
	Account                 = "account"
	GeneralSearch           = "general_search"
	GeneralProduct          = "general_product"
	GeneralCanonicalProduct = "general_canonical_product"
	UKProduct               = "uk_product"
)

// IDGroup is the capture group product patterns use for the product id.
const IDGroup = "id"

const baseTemplate = `(http(s)?://www\.%s/)`

// Templates receive the domain base as their only verb.
var templates = map[string]string{
	Valid:                   `^%s(.*)$`,
	Media:                   `(?i)^%s(.*\.)(apk|gif|jpg|png|ico|css|sit|eps|wmf|rar|tar|zip|rpm|tgz|mov|exe|jpeg|bmp|js|mpg|mp3|mp4|ogv|pdf)(\?|&|$)`,
	JSessionID:              `(?i)^%s(.*jsessionid=.*)$`,
	WriteReview:             `^%s(.*/writeReview\.jsp\?)(.*)$`,
	Assets:                  `^%s(assets/)(.*)$`,
	Mobile:                  `^%s(mobile/)(.*)$`,
	Account:                 `^%s(account/)(.*)$`,
	GeneralSearch:           `^%s(search)(\?|/)(.*)$`,
	GeneralProduct:          `^%s(product/index\.jsp\?productId=)(?P<id>\d+)(.*)$`,
	GeneralCanonicalProduct: `^%s(buy/)(.*)(-)(?P<id>\d+)$`,
	UKProduct:               `^%s(pdp/product\.jsp\?productId=)(?P<id>[0-9A-Z]+)(.*)$`,
}

var categoryIDToken = regexp.MustCompile(`categoryId=(\d+)`)

// Catalogue is the compiled pattern set for one domain.
type Catalogue struct {
	domain   string
	base     string
	compiled map[string]*regexp.Regexp
	category *regexp.Regexp
}

// New compiles the catalogue for domain (for example "amazon.com").
func New(domain string) (*Catalogue, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, fmt.Errorf("domain is required")
	}
	base := fmt.Sprintf(baseTemplate, regexp.QuoteMeta(domain))
	c := &Catalogue{
		domain:   domain,
		base:     base,
		compiled: make(map[string]*regexp.Regexp, len(templates)),
	}
	for name, tmpl := range templates {
		re, err := regexp.Compile(fmt.Sprintf(tmpl, base))
		if err != nil {
			return nil, fmt.Errorf("compile pattern %s: %w", name, err)
		}
		c.compiled[name] = re
	}
	category, err := regexp.Compile(`^` + base + `(\w+)/index\.jsp\?(.*)$`)
	if err != nil {
		return nil, fmt.Errorf("compile category pattern: %w", err)
	}
	c.category = category
	return c, nil
}

// Domain returns the domain the catalogue was built for.
func (c *Catalogue) Domain() string {
	return c.domain
}

// Valid returns the "belongs to this domain" pattern.
func (c *Catalogue) Valid() *regexp.Regexp {
	return c.compiled[Valid]
}

// Lookup resolves a named pattern, or compiles ref as a path regex anchored
// at the domain base when it is not a known name.
func (c *Catalogue) Lookup(ref string) (*regexp.Regexp, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("empty pattern reference")
	}
	if re, ok := c.compiled[ref]; ok {
		return re, nil
	}
	re, err := regexp.Compile(`^` + c.base + ref)
	if err != nil {
		return nil, fmt.Errorf("compile custom pattern %q: %w", ref, err)
	}
	return re, nil
}

// MatchCategory reports whether rawURL is a category listing page
// (www.<domain>/<word>/index.jsp?...categoryId=N..., where <word> is not
// "search"). It returns the URL prefix up to and including the '?' and the
// last categoryId value.
func (c *Catalogue) MatchCategory(rawURL string) (prefix, categoryID string, ok bool) {
	m := c.category.FindStringSubmatch(rawURL)
	if m == nil {
		return "", "", false
	}
	section, query := m[3], m[4]
	if section == "search" {
		return "", "", false
	}
	ids := categoryIDToken.FindAllStringSubmatch(query, -1)
	if len(ids) == 0 {
		return "", "", false
	}
	return m[1] + section + "/index.jsp?", ids[len(ids)-1][1], true
}

// Names lists the built-in pattern names.
func Names() []string {
	out := make([]string, 0, len(templates))
	for name := range templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
