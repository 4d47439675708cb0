// Package ratelimit paces Microsoft Graph requests so large directory reads
// stay under the tenant's throttling limits.
package ratelimit

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"
)

// Limiter wraps a token bucket. A Limiter built with a non-positive rate is
// disabled and never blocks.
type Limiter struct {
	limiter *rate.Limiter
	rps     float64
}

// New returns a limiter allowing rps requests per second with a burst of one.
func New(rps float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), 1), rps: rps}
}

// Enabled reports whether requests are being paced.
func (l *Limiter) Enabled() bool {
	return l != nil && l.limiter != nil
}

// RPS returns the configured rate, zero when disabled.
func (l *Limiter) RPS() float64 {
	if !l.Enabled() {
		return 0
	}
	return l.rps
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (l *Limiter) Allow() bool {
	if !l.Enabled() {
		return true
	}
	return l.limiter.Allow()
}

// Reserve takes a token and returns the reservation. It returns nil when the
// limiter is disabled.
func (l *Limiter) Reserve() *rate.Reservation {
	if !l.Enabled() {
		return nil
	}
	return l.limiter.Reserve()
}

func (l *Limiter) String() string {
	switch {
	case !l.Enabled():
		return "rate limit disabled"
	case l.rps >= 1:
		return fmt.Sprintf("%.2f rps", l.rps)
	default:
		return fmt.Sprintf("1 request per %.0fs", math.Round(1/l.rps))
	}
}
