package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/config"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	systemMetricsInterval = 15 * time.Second
	readHeaderTimeout     = 5 * time.Second
)

// Server exposes the Prometheus registry over HTTP and samples process metrics
// while it runs.
type Server struct {
	config *config.MetricsConfig
	log    *logger.Logger
	clock  clock.Clock

	server *http.Server
	addr   string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a metrics server. Nothing listens until Start.
func NewServer(cfg *config.MetricsConfig, log *logger.Logger) *Server {
	return &Server{
		config: cfg,
		log:    log,
		clock:  clock.NewDefaultClock(),
	}
}

// Handler serves the metrics path and a /health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Start binds the listen address and serves in the background. It does nothing
// when metrics are disabled.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}

	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.addr = listener.Addr().String()
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: readHeaderTimeout}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(2)
	go s.sample(ctx)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("metrics server error: %v", err)
		}
	}()

	s.log.Infof("metrics server listening on %s%s", s.addr, s.config.Path)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	return s.addr
}

// Stop shuts the server down and waits for its goroutines.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.cancel()
	err := s.server.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to shutdown metrics server: %w", err)
	}
	return nil
}

func (s *Server) sample(ctx context.Context) {
	defer s.wg.Done()

	for {
		UpdateSystemMetrics()
		select {
		case <-ctx.Done():
			return
		case <-s.clock.TickAfter(systemMetricsInterval):
		}
	}
}
