// Package retry runs an operation a bounded number of times and records the
// input to an error sink once the attempts are exhausted.
package retry

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/metrics"
)

// Policy bounds the number of attempts of an operation.
type Policy struct {
	maxRetry int
	sink     crawler.ErrorSink
	logger   *zap.Logger
}

// New builds a Policy. maxRetry below one behaves as one attempt.
func New(maxRetry int, sink crawler.ErrorSink, logger *zap.Logger) *Policy {
	if maxRetry < 1 {
		maxRetry = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{maxRetry: maxRetry, sink: sink, logger: logger}
}

// MaxRetry returns the attempt bound.
func (p *Policy) MaxRetry() int { return p.maxRetry }

type stopError struct{ err error }

func (e stopError) Error() string {
	if e.err == nil {
		return "retry stopped"
	}
	return e.err.Error()
}

func (e stopError) Unwrap() error { return e.err }

// Stop marks err as final: Do returns at once without recording the input.
func Stop(err error) error {
	return stopError{err: err}
}

// IsStop reports whether err was produced by Stop.
func IsStop(err error) bool {
	var s stopError
	return errors.As(err, &s)
}

// Do calls op until it succeeds or maxRetry attempts have failed. Attempts are
// numbered from one and run back to back. On exhaustion input is appended to
// the error sink and the zero value is returned with false.
func Do[T any](ctx context.Context, p *Policy, input string, op func(ctx context.Context, attempt int) (T, error)) (T, bool) {
	var zero T
	for attempt := 1; ; attempt++ {
		out, err := op(ctx, attempt)
		if err == nil {
			return out, true
		}
		if IsStop(err) {
			p.logger.Debug("retry stopped", zap.String("input", input), zap.Error(err))
			return zero, false
		}
		if attempt >= p.maxRetry {
			p.exhausted(input, attempt, err)
			return zero, false
		}
		if ctx.Err() != nil {
			p.logger.Debug("retry abandoned", zap.String("input", input), zap.Error(ctx.Err()))
			return zero, false
		}
		metrics.ObserveRetry()
		p.logger.Warn("attempt failed, retrying",
			zap.String("input", input),
			zap.Int("attempt", attempt),
			zap.Int("max_retry", p.maxRetry),
			zap.Error(err),
		)
	}
}

func (p *Policy) exhausted(input string, attempts int, err error) {
	metrics.ObserveRetryExhausted()
	p.logger.Error("retries exhausted",
		zap.String("input", input),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	if p.sink == nil {
		return
	}
	if sinkErr := p.sink.Append(input); sinkErr != nil {
		p.logger.Error("error sink append failed", zap.String("input", input), zap.Error(sinkErr))
	}
}
