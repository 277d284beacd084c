package server

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/config"
	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/registry"
	"github.com/JakeFAU/product-crawler/internal/retry"
	"github.com/JakeFAU/product-crawler/internal/site"
	"github.com/JakeFAU/product-crawler/internal/urlpattern"
)

var supportedKinds = []crawler.ComponentKind{crawler.KindURLProcessor, crawler.KindProductParser}

// BuildRegistry registers a URL processor and a product parser for every
// supported domain and validates the result against the crawled domain.
func BuildRegistry(
	cfg config.Config,
	policy *retry.Policy,
	sink crawler.ErrorSink,
	logger *zap.Logger,
) (*registry.Registry, error) {
	crawled, err := cfg.Domain()
	if err != nil {
		return nil, err
	}
	reg := registry.New(cfg.SupportedDomains, supportedKinds)
	for _, domain := range reg.Domains() {
		wiring := cfg.DomainRules(domain)
		domainLogger := logger.With(zap.String("domain", domain))

		patterns, err := urlpattern.New(domain)
		if err != nil {
			return nil, fmt.Errorf("patterns for %s: %w", domain, err)
		}
		urls, err := site.NewURLProcessor(patterns, wiring.URLs, domainLogger.Named("urls"))
		if err != nil {
			return nil, fmt.Errorf("url processor for %s: %w", domain, err)
		}
		rules, err := site.ResolveRules(wiring.Profile, wiring.Extractor)
		if err != nil {
			return nil, fmt.Errorf("extractor for %s: %w", domain, err)
		}
		parser, err := site.NewParser(domain, urls, site.NewSelectorExtractor(rules), policy, sink, domainLogger.Named("parser"))
		if err != nil {
			return nil, err
		}
		if err := reg.Register(domain, urls); err != nil {
			return nil, err
		}
		if err := reg.Register(domain, parser); err != nil {
			return nil, err
		}
	}
	if err := reg.ValidateStartup(crawled); err != nil {
		return nil, fmt.Errorf("validate components: %w", err)
	}
	return reg, nil
}
