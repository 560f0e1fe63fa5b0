// Package delivery sends extracted records to the configured sink: a token
// bucket paces outbound calls, a retry policy absorbs transient failures,
// and every Deliver call produces exactly one outcome.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/use-agent/pageclip/clock"
	"golang.org/x/time/rate"
)

var errNoToken = errors.New("delivery: rate budget cannot grant a token")

// RateBudget is a process-wide token bucket. Acquire calls are served in
// call order: each one reserves the next free token, so later callers
// always wait at least as long as earlier ones.
type RateBudget struct {
	clock   clock.Clock
	limiter *rate.Limiter
}

// NewRateBudget returns a full bucket of capacity tokens that regains one
// token per interval.
func NewRateBudget(capacity int, interval time.Duration, c clock.Clock) *RateBudget {
	if capacity < 1 {
		capacity = 1
	}
	if c == nil {
		c = clock.Real{}
	}
	return &RateBudget{
		clock:   c,
		limiter: rate.NewLimiter(rate.Every(interval), capacity),
	}
}

// Acquire blocks until a token is available and returns how long it waited.
// If ctx ends first the reserved token is handed back.
func (b *RateBudget) Acquire(ctx context.Context) (time.Duration, error) {
	now := b.clock.Now()
	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return 0, errNoToken
	}

	delay := r.DelayFrom(now)
	if delay <= 0 {
		return 0, nil
	}
	if err := clock.Sleep(ctx, b.clock, delay); err != nil {
		r.CancelAt(b.clock.Now())
		return 0, err
	}
	return delay, nil
}
