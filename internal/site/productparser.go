package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/metrics"
	"github.com/JakeFAU/product-crawler/internal/retry"
)

var errNotAProduct = errors.New("page carries no product attributes")

// IDExtractor pulls the product id out of a product URL.
type IDExtractor interface {
	ExtractProductID(url string) (string, bool)
}

// Parser implements crawler.ProductParser. The id comes from the URL, the
// attributes from the Extractor and the description and keywords from the
// page meta tags.
type Parser struct {
	domain    string
	ids       IDExtractor
	extractor Extractor
	retry     *retry.Policy
	sink      crawler.ErrorSink
	logger    *zap.Logger
}

var _ crawler.ProductParser = (*Parser)(nil)

// NewParser builds a Parser for domain.
func NewParser(
	domain string,
	ids IDExtractor,
	extractor Extractor,
	policy *retry.Policy,
	sink crawler.ErrorSink,
	logger *zap.Logger,
) (*Parser, error) {
	if ids == nil {
		return nil, fmt.Errorf("product parser %s: id extractor is required", domain)
	}
	if extractor == nil {
		return nil, fmt.Errorf("product parser %s: extractor is required", domain)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = retry.New(1, sink, logger)
	}
	return &Parser{
		domain:    strings.ToLower(domain),
		ids:       ids,
		extractor: extractor,
		retry:     policy,
		sink:      sink,
		logger:    logger,
	}, nil
}

// Kind implements crawler.Component.
func (p *Parser) Kind() crawler.ComponentKind { return crawler.KindProductParser }

// Domain implements crawler.Component.
func (p *Parser) Domain() string { return p.domain }

// ParseProduct assembles a product from doc. Pages with none of the four
// attributes are not products and are dropped silently; partial pages are
// re-extracted up to the retry bound and then recorded in the error sink.
func (p *Parser) ParseProduct(ctx context.Context, url string, doc crawler.Document) (crawler.Product, bool) {
	id, ok := p.ids.ExtractProductID(url)
	if !ok {
		p.logger.Error("product id not found", zap.String("url", url))
		p.appendError(url)
		metrics.ObserveProduct("missing_id")
		return crawler.Product{}, false
	}

	page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		p.logger.Error("parse product page", zap.String("url", url), zap.Error(err))
		p.appendError(url)
		metrics.ObserveProduct("unparsable")
		return crawler.Product{}, false
	}

	product, ok := retry.Do(ctx, p.retry, url, func(_ context.Context, attempt int) (crawler.Product, error) {
		ex := p.extractor.Extract(page)
		switch found := ex.Found(); {
		case found == 0:
			p.logger.Warn("page is not a product", zap.String("url", url), zap.String("product_id", id))
			return crawler.Product{}, retry.Stop(errNotAProduct)
		case found < attributeCount:
			return crawler.Product{}, fmt.Errorf("product %s: %d of %d attributes on attempt %d",
				id, found, attributeCount, attempt)
		default:
			return assemble(id, ex, page), nil
		}
	})
	switch {
	case ok:
		metrics.ObserveProduct("parsed")
		p.logger.Debug("product parsed", zap.String("url", url), zap.String("product_id", id))
	default:
		metrics.ObserveProduct("dropped")
	}
	return product, ok
}

func (p *Parser) appendError(url string) {
	if p.sink == nil {
		return
	}
	if err := p.sink.Append(url); err != nil {
		p.logger.Error("error sink append failed", zap.String("url", url), zap.Error(err))
	}
}

func assemble(id string, ex Extraction, page *goquery.Document) crawler.Product {
	return crawler.Product{
		ID:           id,
		Name:         ex.Name,
		Description:  metaContent(page, "description"),
		Keywords:     metaContent(page, "keywords"),
		Barcode:      ex.Barcode,
		Price:        ex.Price,
		WeightGrams:  ex.WeightGrams,
		DimensionsMM: ex.DimensionsMM,
	}
}

func metaContent(page *goquery.Document, name string) string {
	v, _ := page.Find(fmt.Sprintf(`meta[name=%q]`, name)).First().Attr("content")
	return strings.TrimSpace(v)
}
