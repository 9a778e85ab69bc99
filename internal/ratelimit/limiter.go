package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of one admission check. On rejection RetryAfter
// tells the client how long to back off.
type Decision struct {
	Allowed    bool
	Limit      int
	Period     time.Duration
	RetryAfter time.Duration
}

// Limiter admits at most `calls` requests per client within a sliding
// `period`. State is per-process and in-memory; horizontal scaling needs
// an external counter store behind the same contract.
type Limiter struct {
	calls  int
	period time.Duration

	mu      sync.Mutex
	clients map[string][]time.Time
	now     func() time.Time
}

func NewLimiter(calls int, period time.Duration) *Limiter {
	return &Limiter{
		calls:   calls,
		period:  period,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Check purges expired timestamps for the client, then either rejects or
// records the request. The lock covers the whole purge-count-append
// sequence so concurrent requests from one client cannot slip past the
// limit.
func (l *Limiter) Check(clientID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	window := l.clients[clientID]

	kept := window[:0]
	for _, ts := range window {
		if now.Sub(ts) < l.period {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.calls {
		l.clients[clientID] = kept
		return Decision{
			Allowed:    false,
			Limit:      l.calls,
			Period:     l.period,
			RetryAfter: l.period,
		}
	}

	l.clients[clientID] = append(kept, now)
	return Decision{
		Allowed: true,
		Limit:   l.calls,
		Period:  l.period,
	}
}
