package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/api/docs"
	"github.com/goran-ethernal/IndexSync/pkg/config"
	httpSwagger "github.com/swaggo/http-swagger"
)

// docs registers the swagger document on import.
var _ = docs.SwaggerInfo

const shutdownTimeout = 10 * time.Second

// Server serves the read-only index API.
type Server struct {
	config  *config.APIConfig
	handler *Handler
	server  *http.Server
	log     *logger.Logger
}

// NewServer wires the routes and middleware. The timeouts come from cfg, so
// callers normally run cfg.ApplyDefaults first.
func NewServer(cfg *config.APIConfig, registry IndexRegistry, tip ChainTipProvider, log *logger.Logger) *Server {
	s := &Server{
		config:  cfg,
		handler: NewHandler(registry, tip, log),
		log:     log,
	}

	s.server = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      s.middleware(s.routes()),
		ReadTimeout:  cfg.ReadTimeout.Duration,
		WriteTimeout: cfg.WriteTimeout.Duration,
		IdleTimeout:  cfg.IdleTimeout.Duration,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handler.Health)
	mux.HandleFunc("GET /api/v1/chain/tip", s.handler.ChainTip)
	mux.HandleFunc("GET /api/v1/indexes", s.handler.ListIndexes)
	mux.HandleFunc("GET /api/v1/indexes/{name}", s.handler.GetIndex)
	mux.HandleFunc("GET /api/v1/indexes/{name}/lookup/{key}", s.handler.Lookup)
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
	))
	return mux
}

// middleware wraps h so that CORS runs first and recovery runs closest to the handler.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = LoggingMiddleware(s.log)(RecoveryMiddleware(s.log)(h))
	if s.config.CORS.Enabled {
		h = CORSMiddleware(s.config.CORS.AllowedOrigins)(h)
	}
	return h
}

// Handler returns the routes with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled and then shuts down gracefully. It
// returns at once when the API is disabled.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("API server is disabled")
		return nil
	}

	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}
	s.log.Infof("API server listening on %s", listener.Addr())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("API server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown error: %w", err)
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %w", err)
	}

	s.log.Info("API server stopped")
	return nil
}
