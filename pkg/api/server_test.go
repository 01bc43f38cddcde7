package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apimocks "github.com/goran-ethernal/IndexSync/internal/api/mocks"
	"github.com/goran-ethernal/IndexSync/internal/common"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Parallel()

	cfg := &config.APIConfig{
		Enabled:       true,
		ListenAddress: "localhost:8080",
		CORS:          config.CORSConfig{Enabled: true},
	}
	cfg.ApplyDefaults()

	server := NewServer(cfg, apimocks.NewIndexRegistry(t), nil, logger.NewNopLogger())

	require.NotNil(t, server.handler)
	require.Equal(t, "localhost:8080", server.server.Addr)
	require.Equal(t, 15*time.Second, server.server.ReadTimeout)
	require.Equal(t, 15*time.Second, server.server.WriteTimeout)
	require.Equal(t, 60*time.Second, server.server.IdleTimeout)
	require.Equal(t, []string{"*"}, server.config.CORS.AllowedOrigins)
}

func TestServer_Start(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&config.APIConfig{Enabled: false}, apimocks.NewIndexRegistry(t), nil, logger.NewNopLogger())
		require.NoError(t, server.Start(context.Background()))
	})

	t.Run("shuts down on cancel", func(t *testing.T) {
		t.Parallel()

		cfg := &config.APIConfig{
			Enabled:       true,
			ListenAddress: "127.0.0.1:0",
			ReadTimeout:   common.NewDuration(time.Second),
			WriteTimeout:  common.NewDuration(time.Second),
		}
		server := NewServer(cfg, apimocks.NewIndexRegistry(t), nil, logger.NewNopLogger())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- server.Start(ctx) }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})

	t.Run("listen error", func(t *testing.T) {
		t.Parallel()

		cfg := &config.APIConfig{Enabled: true, ListenAddress: "256.0.0.1:99999"}
		server := NewServer(cfg, apimocks.NewIndexRegistry(t), nil, logger.NewNopLogger())
		require.ErrorContains(t, server.Start(context.Background()), "API server error")
	})
}

func TestServer_Routes(t *testing.T) {
	t.Parallel()

	registry := apimocks.NewIndexRegistry(t)
	registry.EXPECT().List().Return(nil).Once()

	cfg := &config.APIConfig{CORS: config.CORSConfig{Enabled: true, AllowedOrigins: []string{"https://example.com"}}}
	h := NewServer(cfg, registry, nil, logger.NewNopLogger()).Handler()

	t.Run("swagger document", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"title": "IndexSync API"`)
		require.Contains(t, w.Body.String(), "/indexes/{name}/lookup/{key}")
	})

	t.Run("cors on api routes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/indexes", nil)
		req.Header.Set("Origin", "https://example.com")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `[]`, w.Body.String())
		require.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/indexes", nil))
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
