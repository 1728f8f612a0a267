package fetcher

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out requests made by any number of goroutines.
type Pacer struct {
	mean    time.Duration
	sigma   time.Duration
	limiter *rate.Limiter

	mu   sync.Mutex
	next time.Time
	// normal returns a standard normal sample; replaced in tests.
	normal func() float64
}

// NewPacer creates a Pacer whose delays follow |N(mean, sigma)|.
// A ratePerSecond greater than zero also caps the request rate with a
// token bucket of burst 1.
func NewPacer(mean, sigma time.Duration, ratePerSecond float64) *Pacer {
	p := &Pacer{
		mean:   max(mean, 0),
		sigma:  max(sigma, 0),
		normal: rand.NormFloat64,
	}
	if ratePerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return p
}

// Delay draws one politeness delay. It is never negative.
func (p *Pacer) Delay() time.Duration {
	if p.sigma == 0 {
		return p.mean
	}
	d := float64(p.mean) + p.normal()*float64(p.sigma)
	return time.Duration(math.Abs(d))
}

// Wait blocks until the caller's request slot arrives.
//
// The slot is reserved on the shared schedule before sleeping, so
// concurrent callers are spread out rather than released together. Wait
// returns ctx.Err() if ctx ends first.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	delay := p.Delay()

	p.mu.Lock()
	now := time.Now()
	start := now
	if p.next.After(start) {
		start = p.next
	}
	slot := start.Add(delay)
	p.next = slot
	p.mu.Unlock()

	if wait := slot.Sub(now); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			// rate.Limiter reports a deadline it cannot meet with its own
			// error; surface the context's instead when it is done.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
	return nil
}
