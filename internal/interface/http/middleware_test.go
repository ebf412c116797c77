package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/fevertrack/internal/infra/config"
)

func TestIPRateLimiterRefills(t *testing.T) {
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	limiter := newIPRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 60, Burst: 2}, func() time.Time { return now })

	_, ok := limiter.allow("10.0.0.1")
	require.True(t, ok)
	_, ok = limiter.allow("10.0.0.1")
	require.True(t, ok)

	wait, ok := limiter.allow("10.0.0.1")
	require.False(t, ok)
	require.Equal(t, time.Second, wait)

	_, ok = limiter.allow("10.0.0.2")
	require.True(t, ok, "buckets are per address")

	now = now.Add(1500 * time.Millisecond)
	_, ok = limiter.allow("10.0.0.1")
	require.True(t, ok)
}

func TestIPRateLimiterSweepsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	limiter := newIPRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 60, Burst: 1}, func() time.Time { return now })

	limiter.allow("10.0.0.1")
	now = now.Add(10 * time.Minute)
	limiter.allow("10.0.0.2")

	require.Len(t, limiter.buckets, 1)
	require.Contains(t, limiter.buckets, "10.0.0.2")
}

func TestRateLimitMiddlewareSetsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(errorHandlingMiddleware(newTestLogger()), rateLimitMiddleware(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}, newTestLogger()))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.NotEmpty(t, second.Header().Get("Retry-After"))
	errBody := decodeErrorBody(t, second.Body.Bytes())
	require.Equal(t, "rate_limit_exceeded", errBody["error"]["code"])
}

func TestRequestContextEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(requestContext(newTestLogger()))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
	require.Equal(t, "req-42", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestMatchOrigin(t *testing.T) {
	allowed := []string{"https://clinic.example.org", "http://localhost:5173"}

	got, ok := matchOrigin("http://localhost:5173", allowed)
	require.True(t, ok)
	require.Equal(t, "http://localhost:5173", got)

	_, ok = matchOrigin("https://evil.example.com", allowed)
	require.False(t, ok)

	got, ok = matchOrigin("https://anything.example", nil)
	require.True(t, ok)
	require.Equal(t, "*", got)
}
