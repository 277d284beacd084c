// Package memory contains an in-memory product sink for local runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// Publisher stores published products for inspection.
type Publisher struct {
	mu       sync.RWMutex
	products []crawler.Product
}

var _ crawler.ProductSink = (*Publisher)(nil)

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the product.
func (p *Publisher) Publish(_ context.Context, product crawler.Product) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.products = append(p.products, product)
	return nil
}

// Products returns the recorded products.
func (p *Publisher) Products() []crawler.Product {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]crawler.Product, len(p.products))
	copy(out, p.products)
	return out
}
