package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests to the remote catalog.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// JitterLimiter spaces consecutive calls by a random delay in
// [minDelay, maxDelay].
type JitterLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

func NewJitterLimiter(minDelay, maxDelay time.Duration) *JitterLimiter {
	return &JitterLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (r *JitterLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastAction)
	delay := r.calculateDelay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	r.lastAction = time.Now()
	return nil
}

func (r *JitterLimiter) calculateDelay() time.Duration {
	if r.maxDelay <= r.minDelay {
		return r.minDelay
	}
	delta := r.maxDelay - r.minDelay
	return r.minDelay + time.Duration(rand.Int63n(int64(delta)))
}

// TokenBucket allows bursts of up to burst requests and refills at
// perSecond tokens per second.
type TokenBucket struct {
	limiter *rate.Limiter
}

func NewTokenBucket(perSecond float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *TokenBucket) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// Chain waits on every limiter in order.
type Chain []RateLimiter

func (c Chain) Wait(ctx context.Context) error {
	for _, l := range c {
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// New builds the limiter for the given settings. Zero values disable the
// corresponding stage; with both disabled the result never blocks.
func New(minDelay, maxDelay time.Duration, perSecond float64, burst int) RateLimiter {
	var chain Chain
	if maxDelay > 0 || minDelay > 0 {
		chain = append(chain, NewJitterLimiter(minDelay, maxDelay))
	}
	if perSecond > 0 {
		chain = append(chain, NewTokenBucket(perSecond, burst))
	}
	return chain
}
