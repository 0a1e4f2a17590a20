package sources

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/evidence-triage-server/internal/domain"
)

// RateLimitedAdapter enforces a per-source request quota over a rolling
// one-minute window using a token bucket. When the bucket is empty the call
// fails immediately with a typed rate-limit error; the orchestrator treats
// that like any other source failure. The limiter is shared mutable state
// across queries and rate.Limiter is safe for concurrent use.
type RateLimitedAdapter struct {
	inner   domain.SourceAdapter
	limiter *rate.Limiter
}

// NewRateLimitedAdapter wraps an adapter with a token bucket allowing
// requestsPerMinute requests per rolling minute, with a burst of the full
// quota.
func NewRateLimitedAdapter(inner domain.SourceAdapter, requestsPerMinute int) *RateLimitedAdapter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimitedAdapter{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
	}
}

// Name returns the wrapped adapter's source database tag.
func (r *RateLimitedAdapter) Name() string { return r.inner.Name() }

// Search consumes one token and delegates, or fails with a RateLimitError
// when the quota for the current window is exhausted.
func (r *RateLimitedAdapter) Search(ctx context.Context, query string, filters domain.AdapterFilters) ([]domain.NormalizedStudy, error) {
	if !r.limiter.Allow() {
		res := r.limiter.Reserve()
		delay := res.Delay()
		res.Cancel()
		return nil, &domain.RateLimitError{Source: r.inner.Name(), RetryAfter: delay}
	}
	return r.inner.Search(ctx, query, filters)
}
