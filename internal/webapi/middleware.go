package webapi

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	HeaderRequestID   = "X-Request-ID"
	HeaderProcessTime = "X-Process-Time"
)

// statusRecorder captures the response status and stamps the process time
// header just before the header block is written.
type statusRecorder struct {
	http.ResponseWriter
	start  time.Time
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
		rec.Header().Set(HeaderProcessTime, fmt.Sprintf("%.6f", time.Since(rec.start).Seconds()))
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.WriteHeader(http.StatusOK)
	}
	return rec.ResponseWriter.Write(b)
}

// Hijack lets websocket upgrades pass through the recorder.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rec.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// RequestLogger logs every request and sets the X-Request-ID and
// X-Process-Time response headers. A caller-supplied request id is kept.
func RequestLogger(next http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)

		rec := &statusRecorder{ResponseWriter: w, start: time.Now()}
		logger.InfoContext(r.Context(), "Request", "requestID", id, "method", r.Method, "path", r.URL.Path)

		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		logger.InfoContext(r.Context(), "Response",
			"requestID", id,
			"status", status,
			"duration", time.Since(rec.start))
	})
}

// RateLimitConfig configures RateLimiter. Calls requests are allowed per
// Period for each client address.
type RateLimitConfig struct {
	Calls  int
	Period time.Duration
	now    func() time.Time
}

// Default rate limit.
const (
	DefaultRateLimitCalls  = 100
	DefaultRateLimitPeriod = time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per client address.
type RateLimiter struct {
	cfg       RateLimitConfig
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

// NewRateLimiter creates a limiter. Zero fields take the defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Calls <= 0 {
		cfg.Calls = DefaultRateLimitCalls
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultRateLimitPeriod
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &RateLimiter{cfg: cfg, clients: map[string]*clientLimiter{}}
}

// Allow reports whether client may make a request now, and otherwise how
// long it should wait.
func (rl *RateLimiter) Allow(client string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.cfg.now()
	rl.sweep(now)

	c, ok := rl.clients[client]
	if !ok {
		every := rl.cfg.Period / time.Duration(rl.cfg.Calls)
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Every(every), rl.cfg.Calls)}
		rl.clients[client] = c
	}
	c.lastSeen = now

	r := c.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep drops clients idle for a full period; their buckets are full again.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.cfg.Period {
		return
	}
	rl.lastSweep = now
	for k, c := range rl.clients {
		if now.Sub(c.lastSeen) >= rl.cfg.Period {
			delete(rl.clients, k)
		}
	}
}

// Middleware rejects requests over the limit with 429 and Retry-After.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.Allow(clientKey(r))
		if !ok {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list; "*"
// allows any origin.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderRequestID)
			w.Header().Set("Access-Control-Expose-Headers", HeaderRequestID+", "+HeaderProcessTime)
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
