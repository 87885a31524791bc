package accounts

import (
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// keyedLimiter rate-limits an operation per key (here: per e-mail
// address for reset requests), so one address cannot be used to flood
// the notifier.
type keyedLimiter struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	byKey map[string]*rate.Limiter
}

func newKeyedLimiter(limit rate.Limit, burst int) *keyedLimiter {
	return &keyedLimiter{
		limit: limit,
		burst: burst,
		byKey: make(map[string]*rate.Limiter),
	}
}

func (l *keyedLimiter) Allow(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	l.mu.Lock()
	lim, ok := l.byKey[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.byKey[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
