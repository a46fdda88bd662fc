package marketdata

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ProviderBudget is a per-provider leaky-bucket rate limiter (spec.md
// §4.2) built on golang.org/x/time/rate, replacing the teacher's
// hand-rolled token-bucket adapter rate limiter with the ecosystem's
// standard implementation.
type ProviderBudget struct {
	limiter *rate.Limiter
	calls   int64
	resetAt time.Time
	mu      sync.Mutex
}

// NewProviderBudget builds a budget allowing callsPerMinute steady
// throughput with a burst equal to that same figure.
func NewProviderBudget(callsPerMinute int) *ProviderBudget {
	return &ProviderBudget{
		limiter: rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), callsPerMinute),
		resetAt: time.Now().Add(time.Minute),
	}
}

// Wait blocks until a call is permitted or ctx is cancelled.
func (b *ProviderBudget) Wait(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	b.recordCall()
	return nil
}

func (b *ProviderBudget) recordCall() {
	atomic.AddInt64(&b.calls, 1)

	b.mu.Lock()
	if time.Now().After(b.resetAt) {
		atomic.StoreInt64(&b.calls, 1)
		b.resetAt = time.Now().Add(time.Minute)
	}
	b.mu.Unlock()
}

// CallsThisWindow reports calls made since the last rolling reset, for
// the observability surface spec.md §4.2 names.
func (b *ProviderBudget) CallsThisWindow() int64 {
	return atomic.LoadInt64(&b.calls)
}
