package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/learn"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

type stubOverrideReader struct {
	ov  learn.Override
	got scope.Key
}

func (s *stubOverrideReader) Get(key scope.Key, now time.Time) learn.Override {
	s.got = key
	return s.ov
}

type stubHealthChecker struct{ err error }

func (s *stubHealthChecker) HealthCheck(ctx context.Context) error { return s.err }

func TestHandleHealthzReturnsOKWhenHealthy(t *testing.T) {
	srv := NewServer(&stubOverrideReader{}, &stubHealthChecker{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleHealthzReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	srv := NewServer(&stubOverrideReader{}, &stubHealthChecker{err: errors.New("db unreachable")})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
	assert.Contains(t, body["error"], "db unreachable")
}

func TestHandleHealthzSkipsCheckWhenHealthCheckerNil(t *testing.T) {
	srv := NewServer(&stubOverrideReader{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleOverrideServesJSONForRequestedScopeKey(t *testing.T) {
	reader := &stubOverrideReader{ov: learn.Override{ScopeKey: "l1|1h|s3|btc", SizeMult: 1.3}}
	srv := NewServer(reader, &stubHealthChecker{})

	req := httptest.NewRequest(http.MethodGet, "/overrides/l1%7C1h%7Cs3%7Cbtc", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var ov learn.Override
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ov))
	assert.InDelta(t, 1.3, ov.SizeMult, 1e-9)
	assert.Equal(t, scope.Key("l1|1h|s3|btc"), reader.got)
}

func TestHandleMetricsIsRegistered(t *testing.T) {
	srv := NewServer(&stubOverrideReader{}, &stubHealthChecker{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
