package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Backend so that Complete and Embed wait on a shared
// token bucket.
type RateLimited struct {
	Backend
	limiter *rate.Limiter
}

// NewRateLimited allows rps calls per second with the given burst. A
// non-positive rps returns b unchanged.
func NewRateLimited(b Backend, rps float64, burst int) Backend {
	if rps <= 0 {
		return b
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{Backend: b, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.Backend.Complete(ctx, prompt)
}

func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Backend.Embed(ctx, text)
}
