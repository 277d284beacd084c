// Package registry holds the per-domain components and validates that every
// supported domain has every supported component kind before a crawl starts.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// Registry errors.
var (
	ErrDuplicateRegistration = errors.New("component already registered")
	ErrUnsupportedComponent  = errors.New("component kind not supported")
	ErrComponentNotFound     = errors.New("component not found")
	ErrUnsupportedDomain     = errors.New("domain not supported")
)

type key struct {
	kind   crawler.ComponentKind
	domain string
}

// Registry maps (kind, domain) to a component.
type Registry struct {
	mu         sync.RWMutex
	domains    []string
	kinds      map[crawler.ComponentKind]struct{}
	components map[key]crawler.Component
}

// New builds an empty registry for the given domains and kinds.
func New(supportedDomains []string, supportedKinds []crawler.ComponentKind) *Registry {
	domains := make([]string, 0, len(supportedDomains))
	seen := make(map[string]struct{}, len(supportedDomains))
	for _, d := range supportedDomains {
		d = normalizeDomain(d)
		if _, dup := seen[d]; dup || d == "" {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}
	kinds := make(map[crawler.ComponentKind]struct{}, len(supportedKinds))
	for _, k := range supportedKinds {
		kinds[k] = struct{}{}
	}
	return &Registry{
		domains:    domains,
		kinds:      kinds,
		components: make(map[key]crawler.Component),
	}
}

// Register stores c under (c.Kind(), domain).
func (r *Registry) Register(domain string, c crawler.Component) error {
	if c == nil {
		return fmt.Errorf("register %s: nil component", domain)
	}
	k := key{kind: c.Kind(), domain: normalizeDomain(domain)}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.kinds[k.kind]; !ok {
		return fmt.Errorf("register %s for %s: %w", k.kind, k.domain, ErrUnsupportedComponent)
	}
	if _, exists := r.components[k]; exists {
		return fmt.Errorf("register %s for %s: %w", k.kind, k.domain, ErrDuplicateRegistration)
	}
	r.components[k] = c
	return nil
}

// ValidateStartup checks that every supported domain has every supported kind
// and that crawledDomain is supported.
func (r *Registry) ValidateStartup(crawledDomain string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, d := range r.domains {
		for _, k := range kinds {
			if _, ok := r.components[key{kind: crawler.ComponentKind(k), domain: d}]; !ok {
				return fmt.Errorf("%s for %s: %w", k, d, ErrComponentNotFound)
			}
		}
	}
	crawled := normalizeDomain(crawledDomain)
	for _, d := range r.domains {
		if d == crawled {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", crawled, ErrUnsupportedDomain)
}

// Get returns the component registered under (kind, domain).
func (r *Registry) Get(kind crawler.ComponentKind, domain string) (crawler.Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[key{kind: kind, domain: normalizeDomain(domain)}]
	if !ok {
		return nil, fmt.Errorf("%s for %s: %w", kind, domain, ErrComponentNotFound)
	}
	return c, nil
}

// URLProcessor returns the URL processor for domain.
func (r *Registry) URLProcessor(domain string) (crawler.URLProcessor, error) {
	c, err := r.Get(crawler.KindURLProcessor, domain)
	if err != nil {
		return nil, err
	}
	p, ok := c.(crawler.URLProcessor)
	if !ok {
		return nil, fmt.Errorf("%s for %s is %T: %w", crawler.KindURLProcessor, domain, c, ErrComponentNotFound)
	}
	return p, nil
}

// ProductParser returns the product parser for domain.
func (r *Registry) ProductParser(domain string) (crawler.ProductParser, error) {
	c, err := r.Get(crawler.KindProductParser, domain)
	if err != nil {
		return nil, err
	}
	p, ok := c.(crawler.ProductParser)
	if !ok {
		return nil, fmt.Errorf("%s for %s is %T: %w", crawler.KindProductParser, domain, c, ErrComponentNotFound)
	}
	return p, nil
}

// Domains returns the supported domains in configuration order.
func (r *Registry) Domains() []string {
	return append([]string(nil), r.domains...)
}

func normalizeDomain(d string) string {
	return strings.ToLower(strings.TrimSpace(d))
}
