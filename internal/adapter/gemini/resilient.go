package gemini

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"vecdb/internal/metrics"
)

// ResilientEmbedder wraps an embedder with a rate limiter, retries with
// jittered backoff, and a circuit breaker. The embedding provider is the
// one external dependency the pipeline hammers, so failures here must
// degrade instead of cascading into consumer retry storms.
type ResilientEmbedder struct {
	inner      embedder
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]float32]
	maxRetries int
}

type embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

func NewResilientEmbedder(inner embedder, requestsPerMinute, maxRetries int) *ResilientEmbedder {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	settings := gobreaker.Settings{
		Name:        "gemini-embed",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &ResilientEmbedder{
		inner:      inner,
		limiter:    rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute),
		breaker:    gobreaker.NewCircuitBreaker[[]float32](settings),
		maxRetries: maxRetries,
	}
}

func (e *ResilientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vec, err := e.breaker.Execute(func() ([]float32, error) {
			return e.inner.Embed(ctx, text)
		})
		if err == nil {
			metrics.EmbeddingProviderCalls.WithLabelValues("success").Inc()
			return vec, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// No point retrying locally while the breaker is open; let
			// the message requeue instead.
			metrics.EmbeddingProviderCalls.WithLabelValues("breaker_open").Inc()
			return nil, err
		}
		metrics.EmbeddingProviderCalls.WithLabelValues("error").Inc()

		if attempt == e.maxRetries {
			break
		}

		wait := backoff + time.Duration(rand.Int63n(int64(backoff)/2+1))
		slog.WarnContext(ctx, "embedding retry", "attempt", attempt+1, "backoff", wait, "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil, lastErr
}
