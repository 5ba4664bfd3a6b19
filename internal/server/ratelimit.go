package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"rjdctl/internal/errors"

	"golang.org/x/time/rate"
)

// limiterEvictionAge is how long an idle client keeps its bucket
const limiterEvictionAge = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client key and evicts buckets
// of clients that went quiet.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rate    rate.Limit
	burst   int

	done   chan struct{}
	once   sync.Once
	logger *errors.Logger
}

// NewRateLimiter allows requestsPerMin per client with bursts of up to
// burstCapacity requests.
func NewRateLimiter(requestsPerMin, burstCapacity int, logger *errors.Logger) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(float64(requestsPerMin) / 60.0),
		burst:   max(burstCapacity, 1),
		done:    make(chan struct{}),
		logger:  logger,
	}

	go rl.evictLoop(limiterEvictionAge)
	return rl
}

// Allow takes a token from the bucket of key
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	client, ok := rl.clients[key]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = client
	}
	client.lastSeen = time.Now()
	rl.mu.Unlock()

	return client.limiter.Allow()
}

// RetryAfter is the time until one more token is available
func (rl *RateLimiter) RetryAfter() time.Duration {
	if rl.rate <= 0 {
		return time.Minute
	}
	return time.Duration(float64(time.Second) / float64(rl.rate))
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]any{
		"active_limiters": len(rl.clients),
		"rate_per_second": float64(rl.rate),
		"rate_per_minute": float64(rl.rate) * 60.0,
		"burst_capacity":  rl.burst,
	}
}

func (rl *RateLimiter) evictLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(interval)
		case <-rl.done:
			return
		}
	}
}

// cleanup drops buckets idle for longer than idle
func (rl *RateLimiter) cleanup(idle time.Duration) {
	rl.mu.Lock()
	cutoff := time.Now().Add(-idle)
	evicted := 0
	for key, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			evicted++
		}
	}
	remaining := len(rl.clients)
	rl.mu.Unlock()

	if rl.logger != nil && evicted > 0 {
		rl.logger.Debug("Evicted idle rate limiters",
			"evicted", evicted,
			"remaining_limiters", remaining)
	}
}

// Close stops the eviction loop. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

// rateLimitMiddleware throttles session requests per client IP, or globally
// when per-IP limiting is off.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.RateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := getRateLimitKey(r, s.RateLimit.ByIP)
		if s.RateLimiter.Allow(key) {
			next.ServeHTTP(w, r)
			return
		}

		s.Observability.Metrics().RecordRateLimitHit(r.Context(), "server")
		s.Logger.Info("Rate limit exceeded",
			"key", key,
			"endpoint", r.URL.Path)

		wait := int(math.Ceil(s.RateLimiter.RetryAfter().Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(wait, 1)))
		writeErrorResponse(w, "Rate limit exceeded", "Too many requests", http.StatusTooManyRequests)
	})
}

func getRateLimitKey(r *http.Request, byIP bool) string {
	if byIP {
		return "ip:" + getClientIP(r)
	}
	return "global"
}

// getClientIP prefers the first valid X-Forwarded-For entry, then X-Real-IP,
// then the connection's remote address.
func getClientIP(r *http.Request) string {
	for entry := range strings.SplitSeq(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := strings.TrimSpace(entry); net.ParseIP(ip) != nil {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
