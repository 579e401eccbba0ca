package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client token bucket limiter.
type RateLimitConfig struct {
	// Max is the number of requests a client may make per Window. It is
	// also the burst size.
	Max int
	// Window is the period over which Max requests are refilled.
	Window time.Duration
	// KeyFunc extracts the client key from a request. If nil, ClientKey is used.
	// It runs before authentication and must not trust credentials.
	KeyFunc func(*http.Request) string
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	cfg   RateLimitConfig
	limit rate.Limit
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientKey
	}
	return &rateLimiter{
		cfg:     cfg,
		limit:   rate.Every(cfg.Window / time.Duration(max(cfg.Max, 1))),
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// reserve takes a token for key and reports the tokens left, whether the
// request may proceed and, if not, when to retry.
func (rl *rateLimiter) reserve(key string) (int, bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.cfg.Max)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	rl.mu.Unlock()

	res := c.limiter.ReserveN(now, 1)
	if !res.OK() {
		return 0, false, rl.cfg.Window
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return 0, false, delay
	}
	return int(math.Max(0, math.Floor(c.limiter.TokensAt(now)))), true, 0
}

// evict forgets clients idle for longer than a window; their bucket is full
// again by then, so a fresh limiter is equivalent.
func (rl *rateLimiter) evict() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.cfg.Window {
			delete(rl.clients, key)
		}
	}
}

// RateLimit returns a middleware that limits each client to cfg.Max
// requests per cfg.Window. Rejected requests get 429 with a Retry-After
// header and a JSON error body. Idle clients are evicted until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	go func() {
		ticker := time.NewTicker(cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.evict()
			}
		}
	}()
	return rl.middleware
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, allowed, retryAfter := rl.reserve(rl.cfg.KeyFunc(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "RateLimited", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientKey identifies a client by the host part of its remote address.
// Request headers are ignored: they are chosen by the client, so keying on
// them would let one caller spread requests over any number of buckets.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// ForwardedClientKey identifies a client by the first X-Forwarded-For
// address, then X-Real-IP, then the remote address. Use it only behind a
// proxy that overwrites those headers.
func ForwardedClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return "ip:" + first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return "ip:" + ip
	}
	return ClientKey(r)
}
