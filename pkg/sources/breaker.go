package sources

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/evidence-triage-server/internal/domain"
)

// BreakerAdapter wraps a source adapter with a circuit breaker so a
// persistently failing database is skipped instead of tying up its fan-out
// goroutine on every query.
type BreakerAdapter struct {
	inner   domain.SourceAdapter
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerAdapter creates a circuit-breaking wrapper around an adapter.
// The breaker trips after at least 3 requests with a 60% failure ratio and
// probes again after 60 seconds.
func NewBreakerAdapter(inner domain.SourceAdapter, logger *logrus.Logger) *BreakerAdapter {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"source": name,
				"from":   from.String(),
				"to":     to.String(),
			}).Warn("Source circuit breaker state changed")
		},
	})

	return &BreakerAdapter{inner: inner, breaker: breaker}
}

// Name returns the wrapped adapter's source database tag.
func (b *BreakerAdapter) Name() string { return b.inner.Name() }

// Search delegates through the circuit breaker. An open breaker returns
// gobreaker.ErrOpenState, which the orchestrator absorbs as a source failure.
func (b *BreakerAdapter) Search(ctx context.Context, query string, filters domain.AdapterFilters) ([]domain.NormalizedStudy, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Search(ctx, query, filters)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.NormalizedStudy), nil
}

// State exposes the current breaker state for health reporting.
func (b *BreakerAdapter) State() gobreaker.State {
	return b.breaker.State()
}
