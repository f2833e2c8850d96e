package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces a sequence of work units
type Limiter interface {
	// Wait blocks until the next unit may start
	Wait(ctx context.Context) error
	// Done marks the end of the current unit
	Done()
}

// Pacer enforces a minimum gap between the end of one unit of work and the
// start of the next. The first Wait returns immediately.
type Pacer struct {
	interval time.Duration

	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewPacer creates a pacer; a non-positive interval disables pacing
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		limiter:  newLimiter(interval),
	}
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Wait blocks until the gap since the last Done has elapsed
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	l := p.limiter
	p.mu.Unlock()
	return l.Wait(ctx)
}

// Done restarts the gap from now
func (p *Pacer) Done() {
	l := newLimiter(p.interval)
	l.Allow()

	p.mu.Lock()
	p.limiter = l
	p.mu.Unlock()
}

// Interval returns the configured gap
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
