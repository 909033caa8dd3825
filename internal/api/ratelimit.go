package api

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// userLimiter is a token bucket per authenticated user.
type userLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[uint64]*visitor
	swept    time.Time
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newUserLimiter(perSecond float64, burst int) *userLimiter {
	return &userLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[uint64]*visitor),
		now:      time.Now,
	}
}

func (l *userLimiter) allow(userID uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if now.Sub(l.swept) > limiterIdleTTL {
		for id, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, id)
			}
		}

		l.swept = now
	}

	v, ok := l.visitors[userID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[userID] = v
	}

	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}

func (l *userLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(userIDFrom(r.Context())) {
			writeError(w, http.StatusTooManyRequests, "too many launch requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}
