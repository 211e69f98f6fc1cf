package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nkiryanov/farmbox/internal/handlers/render"
	"github.com/nkiryanov/farmbox/internal/securitylog"
)

// Idle limiters are dropped not more often than the interval
const limiterCleanupInterval = 5 * time.Minute

type RateLimitConfig struct {
	// Requests allowed per window
	Requests int
	Window   time.Duration
	Burst    int
}

var (
	// Login and registration, brute force protection
	StrictLimit = RateLimitConfig{Requests: 5, Window: time.Minute, Burst: 5}

	// Browser generated traffic such as CSP reports
	LenientLimit = RateLimitConfig{Requests: 100, Window: time.Minute, Burst: 100}
)

// Groups requests for limiting, requests with empty key are not limited
type KeyFunc func(r *http.Request) string

// Client ip based key
func ByIP(r *http.Request) string {
	return securitylog.ClientIP(r)
}

type limiterSet struct {
	limiters    sync.Map // map[string]*rate.Limiter
	limit       rate.Limit
	burst       int
	mu          sync.Mutex
	lastCleanup time.Time
}

func (s *limiterSet) get(key string) *rate.Limiter {
	if limiter, ok := s.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter, _ := s.limiters.LoadOrStore(key, rate.NewLimiter(s.limit, s.burst))
	s.maybeCleanup()

	return limiter.(*rate.Limiter)
}

// Limiter with full bucket has not been used recently
func (s *limiterSet) maybeCleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.lastCleanup) < limiterCleanupInterval {
		return
	}
	s.lastCleanup = time.Now()

	s.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(s.burst) {
			s.limiters.Delete(key)
		}
		return true
	})
}

// RateLimit answers 429 when per key token bucket is empty
func RateLimit(cfg RateLimitConfig, key KeyFunc, log securitylog.Logger) func(http.Handler) http.Handler {
	set := &limiterSet{
		limit:       rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		burst:       cfg.Burst,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			limiter := set.get(k)
			if !limiter.Allow() {
				// Peek when next token is available without consuming it
				reservation := limiter.Reserve()
				retryAfter := max(int(reservation.Delay().Seconds()), 1)
				reservation.Cancel()

				log.LogRateLimit(r)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				render.ServiceError(w, "Too many requests, please try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
