// Package robots caches the robots.txt rules of the crawled site and answers
// whether a URL may be fetched.
package robots

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// ErrNotRobots is returned when the robots URL served something other than a
// robots file, typically an HTML error page.
var ErrNotRobots = errors.New("response is not a robots.txt file")

// Predicate reports whether a path (including its query) may be fetched.
type Predicate func(path string) bool

// RulesParser turns a robots.txt body into a Predicate for userAgent.
type RulesParser interface {
	Parse(body []byte, contentType, userAgent string) (Predicate, error)
}

// TemotoParser parses robots.txt with github.com/temoto/robotstxt.
type TemotoParser struct{}

// Parse implements RulesParser.
func (TemotoParser) Parse(body []byte, contentType, userAgent string) (Predicate, error) {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return nil, fmt.Errorf("content type %q: %w", contentType, ErrNotRobots)
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	group := data.FindGroup(userAgent)
	return group.Test, nil
}

func allowAll(string) bool { return true }

// Gate holds the cached robots predicate for one site.
type Gate struct {
	fetcher   crawler.Fetcher
	parser    RulesParser
	userAgent string
	logger    *zap.Logger

	mu        sync.RWMutex
	predicate Predicate
}

// NewGate builds a Gate. A nil parser defaults to TemotoParser.
func NewGate(fetcher crawler.Fetcher, parser RulesParser, userAgent string, logger *zap.Logger) *Gate {
	if parser == nil {
		parser = TemotoParser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{fetcher: fetcher, parser: parser, userAgent: userAgent, logger: logger}
}

// EnsureLoaded fetches and parses robotsURL unless rules are already cached.
// Any failure caches a predicate that allows everything.
func (g *Gate) EnsureLoaded(ctx context.Context, robotsURL string) {
	g.mu.RLock()
	loaded := g.predicate != nil
	g.mu.RUnlock()
	if loaded {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.predicate != nil {
		return
	}
	predicate, err := g.load(ctx, robotsURL)
	if err != nil {
		g.logger.Warn("robots.txt unavailable, allowing all urls",
			zap.String("robots_url", robotsURL), zap.Error(err))
		predicate = allowAll
	} else {
		g.logger.Info("robots.txt loaded", zap.String("robots_url", robotsURL))
	}
	g.predicate = predicate
}

func (g *Gate) load(ctx context.Context, robotsURL string) (Predicate, error) {
	if g.fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}
	doc, err := g.fetcher.Fetch(ctx, crawler.FetchRequest{URL: robotsURL, Raw: true})
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	predicate, err := g.parser.Parse(doc.Body, doc.ContentType, g.userAgent)
	if err != nil {
		return nil, err
	}
	return predicate, nil
}

// IsAllowed reports whether rawURL may be fetched. Without cached rules every
// URL is allowed.
func (g *Gate) IsAllowed(rawURL string) bool {
	g.mu.RLock()
	predicate := g.predicate
	g.mu.RUnlock()
	if predicate == nil {
		g.logger.Warn("robots.txt not loaded, allowing url", zap.String("url", rawURL))
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		g.logger.Debug("robots check on unparsable url", zap.String("url", rawURL), zap.Error(err))
		return predicate(rawURL)
	}
	return predicate(u.RequestURI())
}

// Invalidate drops the cached rules.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.predicate = nil
}

// Loaded reports whether rules are cached.
func (g *Gate) Loaded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.predicate != nil
}
