package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/use-agent/tubeshim/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		key, _ := c.Get("api_key")
		s, _ := key.(string)
		c.String(http.StatusOK, s)
	})
	return r
}

func do(r http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name     string
		header   map[string]string
		status   int
		body     string
		rejected []string
	}{
		{"missing", nil, http.StatusUnauthorized, "missing API key", []string{RejectMissingKey}},
		{"invalid", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized, "invalid API key", []string{RejectInvalidKey}},
		{"prefix of a key", map[string]string{"X-API-Key": "k"}, http.StatusUnauthorized, "invalid API key", []string{RejectInvalidKey}},
		{"header", map[string]string{"X-API-Key": "k1"}, http.StatusOK, "k1", nil},
		{"bearer", map[string]string{"Authorization": "Bearer k2"}, http.StatusOK, "k2", nil},
		{"basic is ignored", map[string]string{"Authorization": "Basic k2"}, http.StatusUnauthorized, "UNAUTHORIZED", []string{RejectMissingKey}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recorder{}
			r := newEngine(Auth([]string{"k1", "k2", ""}, obs))

			rec := do(r, "/ping", tt.header)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
			assert.Equal(t, tt.rejected, obs.rejected)
		})
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	for _, keys := range [][]string{nil, {""}} {
		rec := do(newEngine(Auth(keys, nil)), "/ping", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestKnownKey(t *testing.T) {
	accepted := [][]byte{[]byte("alpha"), []byte("beta")}
	assert.True(t, knownKey(accepted, []byte("beta")))
	assert.False(t, knownKey(accepted, []byte("bet")))
	assert.False(t, knownKey(accepted, []byte("betaa")))
	assert.False(t, knownKey(nil, []byte("alpha")))
}

func TestRateLimiter(t *testing.T) {
	obs := &recorder{}
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}, obs)
	t.Cleanup(rl.Close)
	r := newEngine(Auth([]string{"a", "b"}, obs), rl.Handler())

	a := map[string]string{"X-API-Key": "a"}
	assert.Equal(t, http.StatusOK, do(r, "/ping", a).Code)
	assert.Equal(t, http.StatusOK, do(r, "/ping", a).Code)

	rec := do(r, "/ping", a)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
	assert.Equal(t, []string{RejectRateLimited}, obs.rejected)

	// Buckets are per identity.
	assert.Equal(t, http.StatusOK, do(r, "/ping", map[string]string{"X-API-Key": "b"}).Code)
}

func TestRateLimiter_FallsBackToClientIP(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}, nil)
	t.Cleanup(rl.Close)
	r := newEngine(rl.Handler())

	assert.Equal(t, http.StatusOK, do(r, "/ping", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "/ping", nil).Code)
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1}, nil)
	t.Cleanup(rl.Close)

	now := time.Now()
	rl.allow("old", now.Add(-2*time.Hour))
	rl.allow("fresh", now.Add(-time.Minute))

	assert.Equal(t, 1, rl.sweep(now))
	rl.mu.Lock()
	_, kept := rl.buckets["fresh"]
	rl.mu.Unlock()
	assert.True(t, kept)
}

func TestRateLimiter_CloseStopsSweeper(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1}, nil)
	rl.Close()
	rl.Close()

	select {
	case <-rl.stop:
	default:
		t.Fatal("stop channel still open after Close")
	}
}

type observed struct {
	route  string
	status int
}

type recorder struct {
	seen     []observed
	rejected []string
}

func (r *recorder) ObserveHTTP(route string, status int) {
	r.seen = append(r.seen, observed{route, status})
}

func (r *recorder) ObserveRejection(reason string) {
	r.rejected = append(r.rejected, reason)
}

func TestMetrics(t *testing.T) {
	rec := &recorder{}
	r := newEngine(Metrics(rec))

	do(r, "/ping", nil)
	do(r, "/nope", nil)

	assert.Equal(t, []observed{
		{"/ping", http.StatusOK},
		{"unmatched", http.StatusNotFound},
	}, rec.seen)
}
