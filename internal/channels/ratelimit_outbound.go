package channels

import (
	"sync"

	"golang.org/x/time/rate"
)

// outboundRateLimit is the steady-state outbound send rate per channel
// and the burst it's allowed to spend immediately. Chat platforms
// throttle bursty senders independently of this process, so this is a
// self-imposed ceiling rather than a measured platform limit.
const (
	outboundRatePerSecond = 5
	outboundBurst         = 10
)

// OutboundLimiter rate-limits Send calls per channel name, guarding
// against a single misbehaving producer (e.g. a cron job replying in a
// tight loop) from tripping a platform's own abuse detection.
type OutboundLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewOutboundLimiter creates an empty per-channel outbound limiter.
func NewOutboundLimiter() *OutboundLimiter {
	return &OutboundLimiter{limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether a Send to the named channel may proceed now,
// consuming one token if so. Never blocks.
func (o *OutboundLimiter) Allow(channelName string) bool {
	o.mu.Lock()
	l, ok := o.limiters[channelName]
	if !ok {
		l = rate.NewLimiter(rate.Limit(outboundRatePerSecond), outboundBurst)
		o.limiters[channelName] = l
	}
	o.mu.Unlock()
	return l.Allow()
}
