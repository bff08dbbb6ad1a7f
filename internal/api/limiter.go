package api

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

// SessionLimiter applies a token bucket per key: a chat session id, or the
// client address for requests that have not been given a session yet.
// Entries idle for longer than limiterIdleTTL are evicted.
type SessionLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*sessionLimiter
	rateVal   rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

type sessionLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewSessionLimiter allows perSec sustained requests with the given burst.
// A non-positive perSec disables limiting.
func NewSessionLimiter(perSec float64, burst int) *SessionLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &SessionLimiter{
		limiters:  make(map[string]*sessionLimiter),
		rateVal:   rate.Limit(perSec),
		burst:     burst,
		now:       time.Now,
		lastSweep: time.Now(),
	}
}

func (l *SessionLimiter) Allow(key string) bool {
	if l.rateVal <= 0 {
		return true
	}
	lim, now := l.limiter(key)
	return lim.AllowN(now, 1)
}

func (l *SessionLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}

// Len reports the number of tracked keys.
func (l *SessionLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *SessionLimiter) limiter(key string) (*rate.Limiter, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= limiterSweepInterval {
		l.sweepLocked(now)
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &sessionLimiter{lim: rate.NewLimiter(l.rateVal, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.lim, now
}

func (l *SessionLimiter) sweepLocked(now time.Time) {
	for key, e := range l.limiters {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

// clientKey identifies the caller of a request without a session id.
func clientKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return "addr:" + host
}
