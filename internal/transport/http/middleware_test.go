package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opentrusty/tenantry/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", tc.header)
		token, ok := bearerToken(r)
		assert.Equal(t, tc.ok, ok, tc.header)
		assert.Equal(t, tc.token, token, tc.header)
	}
}

// TestPurpose: Validates per-client rate limiting.
// Scope: Unit Test
// Security: Abuse protection
// Expected: Requests beyond the burst get 429; other clients are unaffected.
// Test Case ID: HTTP-10
func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	defer rl.Stop()

	h := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(remote string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1000"))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1002"), "same host on a new port shares the bucket")
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:1000"))
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "192.0.2.10", getClientIP(r), "client-supplied headers do not pick the bucket")
}

// TestPurpose: Validates that forged X-Forwarded-For values cannot dodge the rate limit.
// Scope: Unit Test
// Security: Abuse protection
// Expected: Without a trusted proxy, rotating the header keeps one bucket per peer;
// behind a trusted proxy, the forwarded client address selects the bucket.
// Test Case ID: HTTP-11
func TestRouter_RateLimitForwardedFor(t *testing.T) {
	h := &Handler{}
	send := func(router http.Handler, forwarded string) int {
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.RemoteAddr = "10.0.0.1:4000"
		r.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		return w.Code
	}

	rl := NewRateLimiter(0.001, 1)
	defer rl.Stop()
	direct := NewRouter(h, rl, false)
	assert.Equal(t, http.StatusOK, send(direct, "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send(direct, "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, send(direct, "198.51.100.3"))

	proxied := NewRateLimiter(0.001, 1)
	defer proxied.Stop()
	behindProxy := NewRouter(h, proxied, true)
	assert.Equal(t, http.StatusOK, send(behindProxy, "198.51.100.1"))
	assert.Equal(t, http.StatusOK, send(behindProxy, "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, send(behindProxy, "198.51.100.1"))
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	rl.GetLimiter("a")
	rl.evictIdle(rl.visitors["a"].lastSeen.Add(1))
	assert.Empty(t, rl.visitors)
}

// TestPurpose: Validates that request metrics reach the SDK meter provider.
// Scope: Unit Test
// Expected: The handler status passes through; the request counter is collected with one request.
// Test Case ID: HTTP-12
func TestMetricsMiddleware_Records(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	m, err := metrics.New(ctx, metrics.Config{Enabled: true, ServiceName: "tenantry-test", Reader: reader})
	require.NoError(t, err)
	defer m.Shutdown(ctx)

	for _, meter := range []*metrics.Meter{nil, m} {
		h := MetricsMiddleware(meter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTeapot, w.Code)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var requests *metricdata.Sum[int64]
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok && md.Name == "http.server.requests" {
				requests = &sum
			}
		}
	}
	require.NotNil(t, requests, "request counter must be exported")
	require.Len(t, requests.DataPoints, 1)
	assert.Equal(t, int64(1), requests.DataPoints[0].Value)
}
