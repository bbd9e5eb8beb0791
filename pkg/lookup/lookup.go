// Package lookup defines the directory capability the typeahead queries,
// plus decorators for latency, throttling and asynchronous delivery.
package lookup

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Service resolves entity names for a query. Implementations must be safe
// for concurrent use and should return results in a stable order.
type Service interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, query string) ([]string, error)

// Search calls f.
func (f ServiceFunc) Search(ctx context.Context, query string) ([]string, error) {
	return f(ctx, query)
}

// DoneFunc receives the outcome of a lookup started with Go.
type DoneFunc func(results []string, err error)

// Go runs svc.Search on its own goroutine and calls done exactly once.
func Go(ctx context.Context, svc Service, query string, done DoneFunc) {
	go func() {
		results, err := svc.Search(ctx, query)
		done(results, err)
	}()
}

// WithLatency delays every search by d, like a remote directory would.
func WithLatency(svc Service, d time.Duration) Service {
	if d <= 0 {
		return svc
	}
	return ServiceFunc(func(ctx context.Context, query string) ([]string, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return svc.Search(ctx, query)
	})
}

// WithRateLimit makes every search wait for a token from limiter.
func WithRateLimit(svc Service, limiter *rate.Limiter) Service {
	if limiter == nil {
		return svc
	}
	return ServiceFunc(func(ctx context.Context, query string) ([]string, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return svc.Search(ctx, query)
	})
}
