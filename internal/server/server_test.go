package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/preview/internal/config"
	"github.com/GriffinCanCode/AgentOS/preview/internal/middleware"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.Server.Host = "127.0.0.1"

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	return srv
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/api/modules", "", http.StatusOK},
		{http.MethodGet, "/api/stats", "", http.StatusOK},
		{http.MethodPost, "/api/preview", `{"code":"export default () => <b>hi</b>;"}`, http.StatusOK},
		{http.MethodPost, "/api/transpile", `{"code":"const a = 1;"}`, http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestMetricsExposition(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/preview", strings.NewReader(`{"code":"export const x = 1;"}`))
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `preview_outcomes_total{outcome="no_component"} 1`)
	assert.Contains(t, body, "preview_stage_duration_seconds")
	assert.Contains(t, body, `preview_http_requests_total{method="POST",path="/api/preview",status="200"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestAddrAndCloseWithoutRun(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, "127.0.0.1:8000", srv.Addr())
	assert.NoError(t, srv.Close())
}

func TestLargeResponsesAreCompressed(t *testing.T) {
	srv := newTestServer(t)

	code := `export default () => <ul>{Array.from({ length: 400 }, (_, i) => <li key={i}>item {i}</li>)}</ul>;`
	body := `{"code":` + strconv.Quote(code) + `}`

	tests := []struct {
		name           string
		acceptEncoding string
		wantEncoding   string
	}{
		{"gzip accepted", "gzip", "gzip"},
		{"no encoding", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/preview", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantEncoding, w.Header().Get("Content-Encoding"))

			var reader io.Reader = w.Body
			if tt.wantEncoding == "gzip" {
				gz, err := gzip.NewReader(w.Body)
				require.NoError(t, err)
				reader = gz
			}
			decoded, err := io.ReadAll(reader)
			require.NoError(t, err)
			assert.Contains(t, string(decoded), "item 399")
		})
	}
}

func TestEvaluateRateLimitIsShared(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.RateLimit.EvaluateRPS = 1

	srv, err := NewServer(cfg)
	require.NoError(t, err)

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/transpile", strings.NewReader(`{"code":"const a = 1;"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.2"))

	req := httptest.NewRequest(http.MethodGet, "/api/modules", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
