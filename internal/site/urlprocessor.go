// Package site provides the configuration-driven per-domain components: the
// URL processor and the product parser.
package site

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/canonical"
	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/urlpattern"
)

// DefaultIDTemplate expands to the id capture group of a product pattern.
const DefaultIDTemplate = "$" + urlpattern.IDGroup

// URLRules configures a URLProcessor.
type URLRules struct {
	ProductPattern          string   `mapstructure:"product_pattern"`
	CanonicalProductPattern string   `mapstructure:"canonical_product_pattern"`
	CanonicalIDTemplate     string   `mapstructure:"canonical_id_template"`
	Filters                 []string `mapstructure:"filters"`
	TrimParams              []string `mapstructure:"trim_params"`
}

// URLProcessor implements crawler.URLProcessor from URLRules.
type URLProcessor struct {
	domain              string
	product             *regexp.Regexp
	canonicalProduct    *regexp.Regexp
	canonicalIDTemplate string
	filters             []*regexp.Regexp
	canon               *canonical.Canonicalizer
	logger              *zap.Logger
}

var _ crawler.URLProcessor = (*URLProcessor)(nil)

// NewURLProcessor compiles rules against the domain catalogue. The media and
// session-id filters are always applied.
func NewURLProcessor(patterns *urlpattern.Catalogue, rules URLRules, logger *zap.Logger) (*URLProcessor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rules.ProductPattern == "" {
		rules.ProductPattern = urlpattern.GeneralProduct
	}
	if rules.CanonicalProductPattern == "" {
		rules.CanonicalProductPattern = urlpattern.GeneralCanonicalProduct
	}
	if rules.CanonicalIDTemplate == "" {
		rules.CanonicalIDTemplate = DefaultIDTemplate
	}
	product, err := patterns.Lookup(rules.ProductPattern)
	if err != nil {
		return nil, fmt.Errorf("product pattern: %w", err)
	}
	if product.SubexpIndex(urlpattern.IDGroup) < 0 {
		return nil, fmt.Errorf("product pattern %q has no (?P<id>...) group", rules.ProductPattern)
	}
	canonicalProduct, err := patterns.Lookup(rules.CanonicalProductPattern)
	if err != nil {
		return nil, fmt.Errorf("canonical product pattern: %w", err)
	}

	refs := append([]string{urlpattern.JSessionID, urlpattern.Media}, rules.Filters...)
	filters := make([]*regexp.Regexp, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		re, err := patterns.Lookup(ref)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", ref, err)
		}
		filters = append(filters, re)
	}

	return &URLProcessor{
		domain:              patterns.Domain(),
		product:             product,
		canonicalProduct:    canonicalProduct,
		canonicalIDTemplate: rules.CanonicalIDTemplate,
		filters:             filters,
		canon:               canonical.New(patterns, rules.TrimParams),
		logger:              logger,
	}, nil
}

// Kind implements crawler.Component.
func (p *URLProcessor) Kind() crawler.ComponentKind { return crawler.KindURLProcessor }

// Domain implements crawler.Component.
func (p *URLProcessor) Domain() string { return p.domain }

// IsProductURL matches either the normal or the canonical product pattern.
func (p *URLProcessor) IsProductURL(rawURL string) bool {
	return p.product.MatchString(rawURL) || p.canonicalProduct.MatchString(rawURL)
}

// ExtractProductID returns the product id embedded in a product URL.
func (p *URLProcessor) ExtractProductID(rawURL string) (string, bool) {
	if m := p.product.FindStringSubmatch(rawURL); m != nil {
		id := m[p.product.SubexpIndex(urlpattern.IDGroup)]
		return id, id != ""
	}
	if idx := p.canonicalProduct.FindStringSubmatchIndex(rawURL); idx != nil {
		id := string(p.canonicalProduct.ExpandString(nil, p.canonicalIDTemplate, rawURL, idx))
		return id, id != ""
	}
	p.logger.Warn("url does not match any product pattern", zap.String("url", rawURL))
	return "", false
}

// IsValidURL reports whether no filter matches rawURL.
func (p *URLProcessor) IsValidURL(rawURL string) bool {
	for _, re := range p.filters {
		if re.MatchString(rawURL) {
			p.logger.Debug("url filtered", zap.String("url", rawURL), zap.String("filter", re.String()))
			return false
		}
	}
	return true
}

// Normalize canonicalizes rawURL with the domain's trim parameters.
func (p *URLProcessor) Normalize(rawURL string) string {
	normalized := p.canon.Normalize(rawURL)
	if normalized == "" && rawURL != "" {
		p.logger.Debug("normalized url is blank", zap.String("url", rawURL))
	}
	return normalized
}

// TrimProductURL is a pass-through; collapsing canonical product URLs to their
// normal form is not enabled for any domain.
func (p *URLProcessor) TrimProductURL(rawURL string) string {
	return rawURL
}

// Canonicalizer exposes the category helpers used by the frontier.
func (p *URLProcessor) Canonicalizer() *canonical.Canonicalizer {
	return p.canon
}
