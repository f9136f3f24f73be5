// Package dispatcher routes framed messages from the transports to their
// handlers. This file implements the receive rate limiters that protect the
// process from traffic overload.
package dispatcher

import (
	"context"
	"sync/atomic"

	"go.uber.org/ratelimit"
	"golang.org/x/time/rate"
)

// DispatcherRecvLimiter enforces a token-bucket rate limit on inbound
// deliveries. The bucket allows short bursts above the steady-state rate.
// The limiter pointer is swapped atomically so configuration reloads never
// race with Take.
type DispatcherRecvLimiter struct {
	limiter atomic.Pointer[rate.Limiter]
}

// NewTokenRecvLimiter creates a limiter allowing `limit` deliveries per
// second with a bucket capacity of `burst`.
func NewTokenRecvLimiter(limit int, burst int) *DispatcherRecvLimiter {
	l := &DispatcherRecvLimiter{}
	l.limiter.Store(rate.NewLimiter(rate.Limit(limit), burst))
	return l
}

// Take blocks until a token is available.
func (l *DispatcherRecvLimiter) Take() error {
	return l.limiter.Load().Wait(context.Background())
}

// Reload replaces the limiter with one at the new rate and burst. Callers
// mid-Take finish against the old limiter.
func (l *DispatcherRecvLimiter) Reload(limit int, burst int) {
	l.limiter.Store(rate.NewLimiter(rate.Limit(limit), burst))
}

// recvLimiterFilter applies the limit as a stage of the filter chain.
func (l *DispatcherRecvLimiter) recvLimiterFilter(dd *DispatcherDelivery, next DispatcherFilterHandleFunc) error {
	if err := l.Take(); err != nil {
		return err
	}
	return next(dd)
}

// FunnelRecvLimiter is the leaky-bucket alternative. It smooths output to a
// constant rate with no bursting; use it where a steady drain matters more
// than absorbing spikes. Not wired into the default chain.
type FunnelRecvLimiter struct {
	limiter atomic.Pointer[ratelimit.Limiter]
}

// NewFunnelRecvLimiter creates a leaky-bucket limiter draining `limit`
// deliveries per second.
func NewFunnelRecvLimiter(limit int) *FunnelRecvLimiter {
	limiter := ratelimit.New(limit)
	l := &FunnelRecvLimiter{}
	l.limiter.Store(&limiter)
	return l
}

// Take blocks until the bucket permits the next delivery.
func (l *FunnelRecvLimiter) Take() {
	(*l.limiter.Load()).Take()
}

// Reload replaces the limiter with one at the new rate.
func (l *FunnelRecvLimiter) Reload(limit int) {
	limiter := ratelimit.New(limit)
	l.limiter.Store(&limiter)
}

// recvLimiterFilter applies the funnel as a chain stage.
func (l *FunnelRecvLimiter) recvLimiterFilter(dd *DispatcherDelivery, next DispatcherFilterHandleFunc) error {
	l.Take()
	return next(dd)
}
