// Package log implements a product sink that writes structured log entries.
package log

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// Publisher logs every product.
type Publisher struct {
	logger *zap.Logger
}

var _ crawler.ProductSink = (*Publisher)(nil)

// New wires logger to the sink.
func New(logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{logger: logger}
}

// Publish logs product with one field per attribute.
func (p *Publisher) Publish(_ context.Context, product crawler.Product) error {
	p.logger.Info("product",
		zap.String("product_id", product.ID),
		zap.String("name", product.Name),
		zap.String("barcode", product.Barcode),
		zap.String("price", product.Price.String()),
		zap.Int("weight_grams", product.WeightGrams),
		zap.Ints("dimensions_mm", product.DimensionsMM),
		zap.String("keywords", product.Keywords),
	)
	return nil
}
