// Package publisher fans extracted products out to the configured sinks.
package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// Named pairs a sink with the name used in errors.
type Named struct {
	Name string
	Sink crawler.ProductSink
}

// Fanout publishes each product to every sink. A failing sink does not stop
// the others.
type Fanout struct {
	sinks []Named
}

var _ crawler.ProductSink = (*Fanout)(nil)

// NewFanout builds a Fanout.
func NewFanout(sinks ...Named) *Fanout {
	return &Fanout{sinks: sinks}
}

// Publish implements crawler.ProductSink.
func (f *Fanout) Publish(ctx context.Context, product crawler.Product) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Sink.Publish(ctx, product); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (f *Fanout) Len() int { return len(f.sinks) }
