package chat

import (
	"sync"

	"golang.org/x/time/rate"
)

// userLimiters holds one token-bucket limiter per user. Entries are
// created on first use and live for the process lifetime; the per-user
// footprint is a few words.
type userLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newUserLimiters(perMinute, burst int) *userLimiters {
	if perMinute <= 0 {
		perMinute = 20
	}
	if burst <= 0 {
		burst = 5
	}
	return &userLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

// allow reports whether the user may start a turn now.
func (u *userLimiters) allow(userID string) bool {
	u.mu.Lock()
	lim, ok := u.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(u.limit, u.burst)
		u.limiters[userID] = lim
	}
	u.mu.Unlock()
	return lim.Allow()
}
