// Package pipeline implements the visit and product handlers that move URLs
// between the crawl queues.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/canonical"
	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/retry"
	"github.com/JakeFAU/product-crawler/internal/sitemap"
)

// Limiter paces fetches.
type Limiter interface {
	Acquire()
}

// Frontier admits new URLs and product ids.
type Frontier interface {
	ShouldVisit(ctx context.Context, url string, depth int) (bool, error)
	ShouldParseProduct(ctx context.Context, productID string) (bool, error)
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	VisitQueue   crawler.Queue
	ProductQueue crawler.Queue
	Fetcher      crawler.Fetcher
	Limiter      Limiter
	Retry        *retry.Policy
	Frontier     Frontier
	URLs         crawler.URLProcessor
	Parser       crawler.ProductParser
	Sink         crawler.ProductSink
}

// Pipeline holds the handlers of the visit and product queues.
type Pipeline struct {
	visitQ   crawler.Queue
	productQ crawler.Queue
	fetcher  crawler.Fetcher
	limiter  Limiter
	retry    *retry.Policy
	frontier Frontier
	urls     crawler.URLProcessor
	parser   crawler.ProductParser
	sink     crawler.ProductSink
	logger   *zap.Logger
}

// New builds a Pipeline.
func New(deps Deps, logger *zap.Logger) (*Pipeline, error) {
	var missing []string
	for name, ok := range map[string]bool{
		"visit queue":   deps.VisitQueue != nil,
		"product queue": deps.ProductQueue != nil,
		"fetcher":       deps.Fetcher != nil,
		"limiter":       deps.Limiter != nil,
		"retry policy":  deps.Retry != nil,
		"frontier":      deps.Frontier != nil,
		"url processor": deps.URLs != nil,
		"parser":        deps.Parser != nil,
		"product sink":  deps.Sink != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("pipeline: missing %s", strings.Join(missing, ", "))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		visitQ:   deps.VisitQueue,
		productQ: deps.ProductQueue,
		fetcher:  deps.Fetcher,
		limiter:  deps.Limiter,
		retry:    deps.Retry,
		frontier: deps.Frontier,
		urls:     deps.URLs,
		parser:   deps.Parser,
		sink:     deps.Sink,
		logger:   logger,
	}, nil
}

// Visit fetches url after taking one rate-limit permit. Failed fetches are
// retried; exhaustion records url in the error sink.
func (p *Pipeline) Visit(ctx context.Context, url string) (crawler.Document, bool) {
	p.limiter.Acquire()
	return retry.Do(ctx, p.retry, url, func(ctx context.Context, _ int) (crawler.Document, error) {
		doc, err := p.fetcher.Fetch(ctx, crawler.FetchRequest{URL: url})
		if err != nil {
			return crawler.Document{}, fmt.Errorf("fetch %s: %w", url, err)
		}
		return doc, nil
	})
}

// ExtractURLs returns the normalized targets of the page's anchors in
// first-seen order. Relative links resolve against <base href> when present.
func (p *Pipeline) ExtractURLs(doc crawler.Document) []string {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		p.logger.Warn("parse html", zap.String("url", doc.URL), zap.Error(err))
		return nil
	}
	base := doc.URL
	if href, ok := page.Find("base[href]").First().Attr("href"); ok {
		if resolved := canonical.Resolve(doc.URL, href); resolved != "" {
			base = resolved
		}
	}

	seen := make(map[string]struct{})
	var out []string
	page.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := canonical.Resolve(base, href)
		if abs == "" {
			return
		}
		normalized := p.urls.Normalize(abs)
		if strings.TrimSpace(normalized) == "" {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	})
	return out
}

// ExtractSitemapURLs returns the locations of a sitemap document. Page URLs
// are normalized; child sitemap URLs of an index are returned as listed.
func (p *Pipeline) ExtractSitemapURLs(doc crawler.Document) []string {
	sm, err := sitemap.Parse(doc.URL, doc.Body)
	if err != nil {
		p.logger.Warn("parse sitemap", zap.String("url", doc.URL), zap.Error(err))
		return nil
	}
	if sm.Kind == sitemap.KindIndex {
		return sm.Locations
	}
	seen := make(map[string]struct{}, len(sm.Locations))
	out := make([]string, 0, len(sm.Locations))
	for _, loc := range sm.Locations {
		normalized := p.urls.Normalize(loc)
		if strings.TrimSpace(normalized) == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// Split turns discovered urls into messages one level deeper than depth.
func Split(urls []string, depth int) []crawler.CrawlMessage {
	out := make([]crawler.CrawlMessage, 0, len(urls))
	for _, u := range urls {
		out = append(out, crawler.CrawlMessage{URL: u, Depth: depth + 1})
	}
	return out
}

// HandleVisit fetches a page, discovers its links and routes the admitted
// ones to the product or visit queue.
func (p *Pipeline) HandleVisit(ctx context.Context, msg crawler.CrawlMessage) error {
	doc, ok := p.Visit(ctx, msg.URL)
	if !ok {
		return nil
	}
	var urls []string
	if doc.IsXML() {
		urls = p.ExtractSitemapURLs(doc)
	} else {
		urls = p.ExtractURLs(doc)
	}

	var errs []error
	enqueued := 0
	for _, next := range Split(urls, msg.Depth) {
		admit, err := p.frontier.ShouldVisit(ctx, next.URL, next.Depth)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !admit {
			continue
		}
		target := p.visitQ
		if p.urls.IsProductURL(next.URL) {
			next.URL = p.urls.TrimProductURL(next.URL)
			target = p.productQ
		}
		if err := target.Enqueue(ctx, next); err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", next.URL, err))
			continue
		}
		enqueued++
	}
	p.logger.Debug("page visited",
		zap.String("url", msg.URL),
		zap.Int("depth", msg.Depth),
		zap.Int("discovered", len(urls)),
		zap.Int("enqueued", enqueued),
	)
	return errors.Join(errs...)
}

// HandleProduct parses a product page once per product id and publishes the
// result.
func (p *Pipeline) HandleProduct(ctx context.Context, msg crawler.CrawlMessage) error {
	id, ok := p.urls.ExtractProductID(msg.URL)
	if !ok {
		return nil
	}
	fresh, err := p.frontier.ShouldParseProduct(ctx, id)
	if err != nil {
		return err
	}
	if !fresh {
		p.logger.Debug("product already parsed", zap.String("product_id", id))
		return nil
	}
	doc, ok := p.Visit(ctx, msg.URL)
	if !ok {
		return nil
	}
	product, ok := p.parser.ParseProduct(ctx, msg.URL, doc)
	if !ok {
		return nil
	}
	if err := p.sink.Publish(ctx, product); err != nil {
		return fmt.Errorf("publish product %s: %w", product.ID, err)
	}
	p.logger.Info("product published", zap.String("product_id", product.ID), zap.String("url", msg.URL))
	return nil
}
