package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/qlyx-go/internal/cache"
	"github.com/olegiv/qlyx-go/internal/middleware"
	"github.com/olegiv/qlyx-go/internal/model"
)

type fakeStats struct {
	ranges   []string
	clears   int
	clearErr error
}

func (f *fakeStats) GetStats(_ context.Context, rng string) model.StatsSnapshot {
	f.ranges = append(f.ranges, rng)
	snap := model.EmptySnapshot(rng, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	snap.Total = 7
	return snap
}

func (f *fakeStats) GetDailyTrends(context.Context) []model.DayBucket {
	return []model.DayBucket{{Date: "2026-01-01", Visits: 3}, {Date: "2026-01-02"}}
}

func (f *fakeStats) ClearCache(context.Context) error {
	f.clears++
	return f.clearErr
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestRouter(stats *fakeStats, db, statsCache Pinger) http.Handler {
	cfg := RouterConfig{
		Stats:     NewStatsHandler(stats, nil),
		Health:    NewHealthHandler(db, statsCache, "test"),
		Metrics:   http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		AdminAuth: middleware.AdminTokenAuth(adminToken),
		Site: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("page"))
		}),
	}
	return NewRouter(cfg)
}

const adminToken = "secret"

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	return serveAuth(h, method, target, "")
}

func serveAuth(h http.Handler, method, target, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStats(t *testing.T) {
	stats := &fakeStats{}
	h := newTestRouter(stats, pinger{}, nil)

	rec := serve(h, http.MethodGet, "/api/stats?range=7d")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Data model.StatsSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "7d", resp.Data.Range)
	assert.Equal(t, int64(7), resp.Data.Total)
	assert.NotNil(t, resp.Data.Breakdowns.Device)

	serve(h, http.MethodGet, "/api/stats")
	assert.Equal(t, []string{"7d", ""}, stats.ranges)
}

func TestTrends(t *testing.T) {
	h := newTestRouter(&fakeStats{}, pinger{}, nil)

	rec := serve(h, http.MethodGet, "/api/trends")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []model.DayBucket `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, int64(3), resp.Data[0].Visits)
}

func TestClearCache(t *testing.T) {
	stats := &fakeStats{}
	h := newTestRouter(stats, pinger{}, nil)

	rec := serveAuth(h, http.MethodGet, "/api/cache/clear", "Bearer "+adminToken)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, stats.clears)

	rec = serveAuth(h, http.MethodPost, "/api/cache/clear", "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cleared":true`)
	assert.Equal(t, 1, stats.clears)

	stats.clearErr = errors.New("redis down")
	rec = serveAuth(h, http.MethodPost, "/api/cache/clear", "Bearer "+adminToken)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var apiErr middleware.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "cache_clear_failed", apiErr.Error.Code)
}

func TestClearCache_RequiresAdminToken(t *testing.T) {
	stats := &fakeStats{}
	h := newTestRouter(stats, pinger{}, nil)

	rec := serve(h, http.MethodPost, "/api/cache/clear")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serveAuth(h, http.MethodPost, "/api/cache/clear", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
	assert.Zero(t, stats.clears)

	disabled := NewRouter(RouterConfig{
		Stats:     NewStatsHandler(stats, nil),
		Health:    NewHealthHandler(pinger{}, nil, "test"),
		AdminAuth: middleware.AdminTokenAuth(""),
	})
	rec = serveAuth(disabled, http.MethodPost, "/api/cache/clear", "Bearer "+adminToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, stats.clears)

	unmounted := NewRouter(RouterConfig{
		Stats:  NewStatsHandler(stats, nil),
		Health: NewHealthHandler(pinger{}, nil, "test"),
	})
	rec = serveAuth(unmounted, http.MethodPost, "/api/cache/clear", "Bearer "+adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, stats.clears)
}

func TestHealth_CacheStats(t *testing.T) {
	mem := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	defer func() { _ = mem.Close() }()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, "stats:24h", []byte("{}"), 0))
	_, _ = mem.Get(ctx, "stats:24h")
	_, _ = mem.Get(ctx, "stats:7d")

	h := newTestRouter(&fakeStats{}, pinger{}, mem)
	rec := serve(h, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	check := status.Checks["cache"]
	assert.Equal(t, "healthy", check.Status)
	require.NotNil(t, check.Stats)
	assert.Equal(t, int64(1), check.Stats.Hits)
	assert.Equal(t, int64(1), check.Stats.Misses)
	assert.Equal(t, int64(1), check.Stats.Sets)
	assert.Equal(t, 50.0, check.Stats.HitRate)

	_ = mem.Close()
	rec = serve(h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		db       Pinger
		cache    Pinger
		wantCode int
		want     string
	}{
		{"healthy", pinger{}, nil, http.StatusOK, "healthy"},
		{"healthy with cache", pinger{}, pinger{}, http.StatusOK, "healthy"},
		{"db down", pinger{err: errors.New("closed")}, nil, http.StatusServiceUnavailable, "degraded"},
		{"cache down", pinger{}, pinger{err: errors.New("refused")}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeStats{}, tt.db, tt.cache)

			rec := serve(h, http.MethodGet, "/health?verbose=true")
			assert.Equal(t, tt.wantCode, rec.Code)

			var status HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
			assert.Equal(t, tt.want, status.Status)
			assert.Equal(t, "test", status.Version)
			assert.NotNil(t, status.System)
			_, hasCache := status.Checks["cache"]
			assert.Equal(t, tt.cache != nil, hasCache)
		})
	}
}

func TestRouter_Misc(t *testing.T) {
	h := newTestRouter(&fakeStats{}, pinger{}, nil)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health/live").Code)
	assert.Equal(t, "# metrics", serve(h, http.MethodGet, "/metrics").Body.String())
	assert.Equal(t, "page", serve(h, http.MethodGet, "/some/page").Body.String())
}

func TestRouter_TrackingAndRateLimit(t *testing.T) {
	var tracked []string
	cfg := RouterConfig{
		Stats:  NewStatsHandler(&fakeStats{}, nil),
		Health: NewHealthHandler(pinger{}, nil, "test"),
		Site:   http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}),
		Tracking: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tracked = append(tracked, r.URL.Path)
				next.ServeHTTP(w, r)
			})
		},
		RateLimit: middleware.NewRateLimiter(0.001, 1, false).Middleware(),
	}
	h := NewRouter(cfg)

	serve(h, http.MethodGet, "/docs/intro")
	serve(h, http.MethodGet, "/api/trends")
	assert.Equal(t, []string{"/docs/intro"}, tracked)

	rec := serve(h, http.MethodGet, "/api/trends")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "rate_limit_exceeded"))
}

func TestRouter_NotFoundWithoutSite(t *testing.T) {
	h := NewRouter(RouterConfig{
		Stats:  NewStatsHandler(&fakeStats{}, nil),
		Health: NewHealthHandler(pinger{}, nil, "test"),
	})

	rec := serve(h, http.MethodGet, "/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}
