package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(t *testing.T, body string) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(body))
		require.NoError(t, err)
	})
}

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		requestMethod  string
		expectedOrigin string
	}{
		{
			name:           "wildcard echoes the origin",
			allowedOrigins: []string{"*"},
			requestOrigin:  "https://example.com",
			requestMethod:  http.MethodGet,
			expectedOrigin: "https://example.com",
		},
		{
			name:           "wildcard without origin header",
			allowedOrigins: []string{"*"},
			requestMethod:  http.MethodGet,
			expectedOrigin: "*",
		},
		{
			name:           "listed origin",
			allowedOrigins: []string{"https://example.com", "https://another.com"},
			requestOrigin:  "https://another.com",
			requestMethod:  http.MethodGet,
			expectedOrigin: "https://another.com",
		},
		{
			name:           "unlisted origin",
			allowedOrigins: []string{"https://example.com"},
			requestOrigin:  "https://evil.com",
			requestMethod:  http.MethodGet,
		},
		{
			name:           "specific origins without origin header",
			allowedOrigins: []string{"https://example.com"},
			requestMethod:  http.MethodGet,
		},
		{
			name:           "empty list",
			allowedOrigins: []string{},
			requestOrigin:  "https://example.com",
			requestMethod:  http.MethodGet,
		},
		{
			name:           "preflight",
			allowedOrigins: []string{"https://example.com"},
			requestOrigin:  "https://example.com",
			requestMethod:  http.MethodOptions,
			expectedOrigin: "https://example.com",
		},
		{
			name:           "preflight from unlisted origin",
			allowedOrigins: []string{"https://example.com"},
			requestOrigin:  "https://evil.com",
			requestMethod:  http.MethodOptions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := CORSMiddleware(tt.allowedOrigins)(okHandler(t, "OK"))

			req := httptest.NewRequest(tt.requestMethod, "/api/v1/indexes", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.Equal(t, tt.expectedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.expectedOrigin != "" {
				require.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
				require.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
				require.Equal(t, corsMaxAge, w.Header().Get("Access-Control-Max-Age"))
			}

			require.Equal(t, http.StatusOK, w.Code)
			if tt.requestMethod == http.MethodOptions {
				require.Empty(t, w.Body.String())
			} else {
				require.Equal(t, "OK", w.Body.String())
			}
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		write  bool
	}{
		{name: "explicit status", status: http.StatusNotFound},
		{name: "server error", status: http.StatusInternalServerError},
		{name: "implicit 200", status: http.StatusOK, write: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := LoggingMiddleware(logger.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.write {
					_, _ = w.Write([]byte("OK"))
					return
				}
				w.WriteHeader(tt.status)
			}))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tt.status, w.Code)
		})
	}
}

func TestResponseWriter(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	require.Equal(t, http.StatusOK, rw.statusCode)

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusBadRequest)
	require.Equal(t, http.StatusCreated, rw.statusCode)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		handler      http.Handler
		expectedCode int
		expectedBody string
	}{
		{
			name:         "no panic",
			handler:      okHandler(t, "success"),
			expectedCode: http.StatusOK,
			expectedBody: "success",
		},
		{
			name:         "panic with string",
			handler:      http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
			expectedCode: http.StatusInternalServerError,
			expectedBody: "Internal Server Error\n",
		},
		{
			name:         "panic with error",
			handler:      http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(assert.AnError) }),
			expectedCode: http.StatusInternalServerError,
			expectedBody: "Internal Server Error\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := RecoveryMiddleware(logger.NewNopLogger())(tt.handler)
			w := httptest.NewRecorder()

			require.NotPanics(t, func() {
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			})
			require.Equal(t, tt.expectedCode, w.Code)
			require.Equal(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestMiddlewareChaining(t *testing.T) {
	t.Parallel()

	log := logger.NewNopLogger()
	h := CORSMiddleware([]string{"*"})(
		LoggingMiddleware(log)(
			RecoveryMiddleware(log)(okHandler(t, "final handler")),
		),
	)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "final handler", w.Body.String())
	require.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
