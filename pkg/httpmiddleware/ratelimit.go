package httpmiddleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the sliding window duration.
	Window time.Duration
	// KeyFunc extracts the limit key from a request; defaults to client IP.
	KeyFunc func(*http.Request) string
}

// window tracks request counts across two adjacent fixed windows; the
// effective count weighs the previous window by its overlap with the sliding
// window, which smooths bursts at window boundaries.
type window struct {
	prevCount float64
	currCount float64
	currStart time.Time
}

type rateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	clients map[string]*window
}

func (rl *rateLimiter) allow(key string, now time.Time) (remaining int, retryAfter time.Duration, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	wnd, found := rl.clients[key]
	if !found {
		wnd = &window{currStart: now}
		rl.clients[key] = wnd
	}

	elapsed := now.Sub(wnd.currStart)
	if elapsed >= rl.cfg.Window {
		if elapsed >= 2*rl.cfg.Window {
			wnd.prevCount = 0
		} else {
			wnd.prevCount = wnd.currCount
		}
		wnd.currCount = 0
		wnd.currStart = now.Truncate(rl.cfg.Window)
		elapsed = now.Sub(wnd.currStart)
	}

	overlap := 1.0 - elapsed.Seconds()/rl.cfg.Window.Seconds()
	effective := wnd.prevCount*overlap + wnd.currCount

	if effective >= float64(rl.cfg.Max) {
		return 0, rl.cfg.Window - elapsed, false
	}

	wnd.currCount++
	remaining = rl.cfg.Max - int(effective) - 1
	if remaining < 0 {
		remaining = 0
	}
	return remaining, 0, true
}

// sweep drops client entries idle for at least two windows.
func (rl *rateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, wnd := range rl.clients {
		if now.Sub(wnd.currStart) >= 2*rl.cfg.Window {
			delete(rl.clients, key)
		}
	}
}

// RateLimitWithCleanup returns a sliding window rate limiting middleware keyed
// by client IP (or cfg.KeyFunc). Rejected requests get 429 with a Retry-After
// header. The provided context bounds the background cleanup goroutine.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	rl := &rateLimiter{cfg: cfg, clients: make(map[string]*window)}

	go func() {
		ticker := time.NewTicker(cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.sweep(now)
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, retryAfter, ok := rl.allow(cfg.KeyFunc(r), time.Now())

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !ok {
				seconds := int(retryAfter.Seconds())
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"kind":    "rate_limited",
					"message": "too many requests",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
