// Package webserver runs the HTTP API with its middleware chain and
// graceful shutdown.
package webserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spboyer/aemforge/internal/scoring"
	"github.com/spboyer/aemforge/internal/webapi"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimit      webapi.RateLimitConfig
	SyncTimeout    time.Duration

	Jobs   webapi.JobService
	Scorer scoring.Scorer
	Logger *slog.Logger
}

// DefaultPort is used when Config.Port is zero.
const DefaultPort = 8000

// Server wraps the HTTP server with configuration.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger *slog.Logger
}

// New creates a new HTTP server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Jobs == nil {
		return nil, errors.New("webserver: a job service is required")
	}
	if cfg.Scorer == nil {
		cfg.Scorer = scoring.NewEngine(nil, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	mux := http.NewServeMux()
	registerRoutes(mux, cfg)

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
			Handler:           middleware(mux, cfg),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// middleware wraps h in, from outermost: request logging, CORS and rate
// limiting. Preflight requests are answered before they count against the
// limit.
func middleware(h http.Handler, cfg Config) http.Handler {
	h = webapi.NewRateLimiter(cfg.RateLimit).Middleware(h)
	h = webapi.CORSMiddleware(h, cfg.AllowedOrigins...)
	return webapi.RequestLogger(h, cfg.Logger)
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("HTTP server starting", "address", ln.Addr().String())

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err)
		}
	}()

	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	<-shutdownDone
	return nil
}

// Handler returns the underlying http.Handler (useful for testing).
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
