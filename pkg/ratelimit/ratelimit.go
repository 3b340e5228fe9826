// Package ratelimit spaces out requests to vendor agenda portals. Limits are
// keyed by vendor, not by city: two cities hosted on the same platform share
// one budget, because the platform sees one client.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// VendorLimiter hands out one token per vendor every MinDelay.
type VendorLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	minDelay time.Duration
	burst    int
}

// New returns a limiter that allows at most one request per minDelay per
// vendor, with the given burst.
func New(minDelay time.Duration, burst int) *VendorLimiter {
	if burst < 1 {
		burst = 1
	}
	return &VendorLimiter{
		limiters: make(map[string]*rate.Limiter),
		minDelay: minDelay,
		burst:    burst,
	}
}

func (v *VendorLimiter) limiter(vendor string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.limiters[vendor]
	if !ok {
		l = rate.NewLimiter(rate.Every(v.minDelay), v.burst)
		v.limiters[vendor] = l
	}
	return l
}

// WaitIfNeeded blocks until the vendor's budget allows another request, or
// until ctx is cancelled.
func (v *VendorLimiter) WaitIfNeeded(ctx context.Context, vendor string) error {
	return v.limiter(vendor).Wait(ctx)
}
