// Package ratelimiter
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Token-bucket admission control for the accept path.

package ratelimiter

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Limiter gates new connections with a token bucket. A zero rate disables
// limiting. All methods are safe for concurrent use.
type Limiter struct {
	limiter atomic.Pointer[rate.Limiter]
}

// New creates a limiter admitting perSecond connections with the given burst.
// A burst below one is raised to one so a positive rate can admit anything.
func New(perSecond float64, burst int) *Limiter {
	l := &Limiter{}
	l.Set(perSecond, burst)
	return l
}

func limitOf(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

func burstOf(perSecond float64, burst int) int {
	if perSecond > 0 && burst < 1 {
		return 1
	}
	return burst
}

// Allow consumes one token if available. It never blocks.
func (l *Limiter) Allow() bool {
	return l.limiter.Load().Allow()
}

// Set replaces the rate and burst. The new bucket starts full.
func (l *Limiter) Set(perSecond float64, burst int) {
	l.limiter.Store(rate.NewLimiter(limitOf(perSecond), burstOf(perSecond, burst)))
}

// Unlimited reports whether the limiter admits everything.
func (l *Limiter) Unlimited() bool {
	return l.limiter.Load().Limit() == rate.Inf
}

// Tokens returns the current bucket level, for diagnostics.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Load().Tokens()
}
