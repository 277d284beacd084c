// Package frontier decides which URLs and products are new for the current
// crawl cycle, backed by a keyed set store.
package frontier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/canonical"
	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/metrics"
)

// Key prefixes of the two dedup sets; the crawled domain is appended.
const (
	VisitedPrefix  = "visitedUrls-"
	ProductsPrefix = "parsedProductIds-"
)

// Pattern is the validity check a URL must pass before anything else.
type Pattern interface {
	MatchString(s string) bool
}

// Categories collapses paginated category URLs to one key.
type Categories interface {
	IsCategoryURL(url string) bool
	TrimCategoryURL(url string) string
}

// Robots answers whether a URL may be fetched.
type Robots interface {
	IsAllowed(url string) bool
}

// Config configures a Store.
type Config struct {
	Domain   string
	MaxDepth int
}

// Store is the dedup frontier for one crawled domain. Membership check and
// insert are separate store calls, so two workers racing on the same URL may
// both be admitted.
type Store struct {
	sets       crawler.SetStore
	valid      Pattern
	urls       crawler.URLProcessor
	categories Categories
	robots     Robots
	maxDepth   int
	visitedKey string
	productKey string
	logger     *zap.Logger
}

// New builds a Store.
func New(
	cfg Config,
	sets crawler.SetStore,
	valid Pattern,
	urls crawler.URLProcessor,
	categories Categories,
	robots Robots,
	logger *zap.Logger,
) (*Store, error) {
	domain := strings.ToLower(strings.TrimSpace(cfg.Domain))
	if domain == "" {
		return nil, fmt.Errorf("frontier domain is required")
	}
	if sets == nil || valid == nil || urls == nil || categories == nil || robots == nil {
		return nil, fmt.Errorf("frontier for %s: missing collaborator", domain)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sets:       sets,
		valid:      valid,
		urls:       urls,
		categories: categories,
		robots:     robots,
		maxDepth:   cfg.MaxDepth,
		visitedKey: VisitedPrefix + domain,
		productKey: ProductsPrefix + domain,
		logger:     logger,
	}, nil
}

// VisitedKey returns the key of the visited URL set.
func (s *Store) VisitedKey() string { return s.visitedKey }

// ProductsKey returns the key of the parsed product id set.
func (s *Store) ProductsKey() string { return s.productKey }

// ShouldVisit reports whether url at depth is admitted and, if so, records it
// as visited. Category URLs are recorded in their collapsed form.
func (s *Store) ShouldVisit(ctx context.Context, url string, depth int) (bool, error) {
	if depth >= s.maxDepth {
		return s.reject("max_depth", url), nil
	}
	if !s.valid.MatchString(url) {
		return s.reject("invalid", url), nil
	}
	if !s.urls.IsValidURL(url) {
		return s.reject("filtered", url), nil
	}
	if !s.robots.IsAllowed(url) {
		return s.reject("robots", url), nil
	}

	key := canonical.TrimHTTPS(url)
	seen, err := s.sets.Contains(ctx, s.visitedKey, key)
	if err != nil {
		return false, fmt.Errorf("check visited %s: %w", url, err)
	}
	if seen {
		return s.reject("visited", url), nil
	}
	if s.categories.IsCategoryURL(url) {
		key = canonical.TrimHTTPS(s.categories.TrimCategoryURL(url))
		seen, err = s.sets.Contains(ctx, s.visitedKey, key)
		if err != nil {
			return false, fmt.Errorf("check visited category %s: %w", url, err)
		}
		if seen {
			return s.reject("visited_category", url), nil
		}
	}
	if err := s.sets.Add(ctx, s.visitedKey, key); err != nil {
		return false, fmt.Errorf("mark visited %s: %w", url, err)
	}
	metrics.ObserveFrontierDecision("accepted")
	return true, nil
}

func (s *Store) reject(reason, url string) bool {
	metrics.ObserveFrontierDecision(reason)
	s.logger.Debug("url rejected", zap.String("url", url), zap.String("reason", reason))
	return false
}

// ShouldParseProduct reports whether productID is new and, if so, records it.
func (s *Store) ShouldParseProduct(ctx context.Context, productID string) (bool, error) {
	if strings.TrimSpace(productID) == "" {
		return false, nil
	}
	seen, err := s.sets.Contains(ctx, s.productKey, productID)
	if err != nil {
		return false, fmt.Errorf("check product %s: %w", productID, err)
	}
	if seen {
		return false, nil
	}
	if err := s.sets.Add(ctx, s.productKey, productID); err != nil {
		return false, fmt.Errorf("mark product %s: %w", productID, err)
	}
	return true, nil
}

// MarkVisited records url as visited without any admission checks.
func (s *Store) MarkVisited(ctx context.Context, url string) error {
	if err := s.sets.Add(ctx, s.visitedKey, canonical.TrimHTTPS(url)); err != nil {
		return fmt.Errorf("mark visited %s: %w", url, err)
	}
	return nil
}

// Reset clears both dedup sets.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.sets.Delete(ctx, s.visitedKey, s.productKey); err != nil {
		return fmt.Errorf("reset frontier: %w", err)
	}
	return nil
}

// Close closes the underlying set store.
func (s *Store) Close() error {
	return s.sets.Close()
}
