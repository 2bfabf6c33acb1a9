// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package stats computes range-bounded visit statistics and daily trends,
// caching each result for a fixed lifetime.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/olegiv/qlyx-go/internal/cache"
	"github.com/olegiv/qlyx-go/internal/config"
	"github.com/olegiv/qlyx-go/internal/metrics"
	"github.com/olegiv/qlyx-go/internal/model"
	"github.com/olegiv/qlyx-go/internal/store"
)

// Range tokens accepted by GetStats.
const (
	Range24h = "24h"
	Range7d  = "7d"
	Range1m  = "1m"
	Range1y  = "1y"
)

// DefaultRange is used for empty or unrecognized tokens.
const DefaultRange = Range24h

// TrendDays is the number of calendar days covered by GetDailyTrends.
const TrendDays = 7

const trendsKey = "daily_trends"

// DefaultStoreTimeout bounds each store query when Options.StoreTimeout is unset.
const DefaultStoreTimeout = 2 * time.Second

// Store is the read side of the visit store.
type Store interface {
	Totals(ctx context.Context, since time.Time) (store.Totals, error)
	GroupBy(ctx context.Context, dim store.Dimension, since time.Time) ([]store.GroupCount, error)
	Sessions(ctx context.Context, since time.Time) (model.SessionSummary, error)
	Recent(ctx context.Context, since time.Time, limit int) ([]model.VisitEvent, error)
	DailyTrends(ctx context.Context, since time.Time) ([]model.DayBucket, error)
}

// Options configures an Engine. Store is required; everything else has a
// usable zero value.
type Options struct {
	Store        Store
	Cache        cache.Cacher // nil disables caching
	TTL          time.Duration
	StoreTimeout time.Duration // Deadline per store query
	Now          func() time.Time
	MaxRecent    int
	Dimensions   []store.Dimension // Breakdowns to compute; others stay empty
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Engine answers statistics queries from the store, gated by its cache.
type Engine struct {
	store      Store
	cache      cache.Cacher
	snapshots  *cache.TypedCache[entry[model.StatsSnapshot]]
	trends     *cache.TypedCache[entry[[]model.DayBucket]]
	ttl        time.Duration
	timeout    time.Duration
	now        func() time.Time
	maxRecent  int
	dimensions []store.Dimension
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// entry is the cached envelope. CapturedAt is checked against the engine's
// own clock so validity does not depend on the backend's expiry.
type entry[T any] struct {
	CapturedAt time.Time `json:"captured_at"`
	Payload    T         `json:"payload"`
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	e := &Engine{
		store:      opts.Store,
		ttl:        opts.TTL,
		timeout:    opts.StoreTimeout,
		now:        opts.Now,
		maxRecent:  opts.MaxRecent,
		dimensions: opts.Dimensions,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
	if opts.Cache != nil && opts.TTL > 0 {
		e.cache = opts.Cache
		e.snapshots = cache.NewTypedCache[entry[model.StatsSnapshot]](opts.Cache, opts.TTL)
		e.trends = cache.NewTypedCache[entry[[]model.DayBucket]](opts.Cache, opts.TTL)
	}
	return e
}

// AllDimensions lists every breakdown dimension in snapshot order.
func AllDimensions() []store.Dimension {
	return []store.Dimension{
		store.DimDevice, store.DimBrowser, store.DimCountry, store.DimRegion, store.DimCity,
		store.DimOS, store.DimLanguage, store.DimTimezone, store.DimOrganization,
	}
}

// DimensionsFromFeatures returns the breakdowns enabled by f.
func DimensionsFromFeatures(f config.Features) []store.Dimension {
	enabled := map[store.Dimension]bool{
		store.DimDevice:       f.DeviceBreakdown,
		store.DimBrowser:      f.BrowserBreakdown,
		store.DimCountry:      f.CountryBreakdown,
		store.DimRegion:       f.RegionBreakdown,
		store.DimCity:         f.CityBreakdown,
		store.DimOS:           f.OSBreakdown,
		store.DimLanguage:     f.LanguageBreakdown,
		store.DimTimezone:     f.TimezoneBreakdown,
		store.DimOrganization: f.OrgBreakdown,
	}
	var dims []store.Dimension
	for _, d := range AllDimensions() {
		if enabled[d] {
			dims = append(dims, d)
		}
	}
	return dims
}

// NormalizeRange maps a range token to a supported one.
func NormalizeRange(rng string) string {
	switch rng {
	case Range24h, Range7d, Range1m, Range1y:
		return rng
	default:
		return DefaultRange
	}
}

// rangeStart returns the inclusive lower bound for rng relative to now.
func rangeStart(rng string, now time.Time) time.Time {
	switch rng {
	case Range7d:
		return now.AddDate(0, 0, -7)
	case Range1m:
		return now.AddDate(0, -1, 0)
	case Range1y:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, 0, -1)
	}
}

// GetStats returns the snapshot for rng. Unknown tokens fall back to 24h.
// A store failure yields a zeroed snapshot that is not cached.
func (e *Engine) GetStats(ctx context.Context, rng string) model.StatsSnapshot {
	rng = NormalizeRange(rng)
	key := "stats:" + rng

	if snap, ok := load(ctx, e, e.snapshots, key); ok {
		return snap
	}

	now := e.now()
	snap, err := e.compute(ctx, rng, now)
	if err != nil {
		e.logger.Error("failed to compute statistics", "range", rng, "error", err)
		e.metrics.StoreError("stats")
		return model.EmptySnapshot(rng, now)
	}

	save(ctx, e, e.snapshots, key, now, snap)
	return snap
}

func (e *Engine) compute(ctx context.Context, rng string, now time.Time) (model.StatsSnapshot, error) {
	since := rangeStart(rng, now)
	snap := model.EmptySnapshot(rng, now)

	totals, err := bounded(ctx, e.timeout, func(ctx context.Context) (store.Totals, error) {
		return e.store.Totals(ctx, since)
	})
	if err != nil {
		return snap, err
	}
	snap.Total, snap.Humans, snap.Bots = totals.Total, totals.Humans, totals.Bots

	for _, dim := range e.dimensions {
		groups, err := bounded(ctx, e.timeout, func(ctx context.Context) ([]store.GroupCount, error) {
			return e.store.GroupBy(ctx, dim, since)
		})
		if err != nil {
			return snap, err
		}
		items := breakdown(groups, totals.Total)
		if err := assign(&snap.Breakdowns, dim, items); err != nil {
			return snap, err
		}
	}

	sessions, err := bounded(ctx, e.timeout, func(ctx context.Context) (model.SessionSummary, error) {
		return e.store.Sessions(ctx, since)
	})
	if err != nil {
		return snap, err
	}
	snap.Sessions = model.SessionSummary{
		Count:                  sessions.Count,
		AveragePages:           round1(sessions.AveragePages),
		AverageDurationMinutes: round1(sessions.AverageDurationMinutes),
	}

	recent, err := bounded(ctx, e.timeout, func(ctx context.Context) ([]model.VisitEvent, error) {
		return e.store.Recent(ctx, since, e.maxRecent)
	})
	if err != nil {
		return snap, err
	}
	snap.RecentVisitors = recent

	return snap, nil
}

// GetDailyTrends returns one bucket per day for the trailing TrendDays days,
// oldest first, including days without visits.
func (e *Engine) GetDailyTrends(ctx context.Context) []model.DayBucket {
	if days, ok := load(ctx, e, e.trends, trendsKey); ok {
		return days
	}

	now := e.now()
	today := now.UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(TrendDays - 1))

	rows, err := bounded(ctx, e.timeout, func(ctx context.Context) ([]model.DayBucket, error) {
		return e.store.DailyTrends(ctx, since)
	})
	if err != nil {
		e.logger.Error("failed to compute daily trends", "error", err)
		e.metrics.StoreError("trends")
		return []model.DayBucket{}
	}

	days := fillDays(rows, since, TrendDays)
	save(ctx, e, e.trends, trendsKey, now, days)
	return days
}

// ClearCache drops every cached snapshot and trend series.
func (e *Engine) ClearCache(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	if err := e.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clearing statistics cache: %w", err)
	}
	e.logger.Info("statistics cache cleared")
	return nil
}

// bounded runs one store query under its own deadline.
func bounded[T any](ctx context.Context, timeout time.Duration, query func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return query(ctx)
}

// load returns the cached payload for key when a fresh entry exists. A nil
// tc means caching is disabled.
func load[T any](ctx context.Context, e *Engine, tc *cache.TypedCache[entry[T]], key string) (T, bool) {
	var zero T
	if tc == nil {
		return zero, false
	}

	env, err := tc.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			e.logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
		}
		e.metrics.CacheResult(key, false)
		return zero, false
	}
	if e.now().Sub(env.CapturedAt) >= e.ttl {
		e.metrics.CacheResult(key, false)
		return zero, false
	}

	e.metrics.CacheResult(key, true)
	return env.Payload, true
}

func save[T any](ctx context.Context, e *Engine, tc *cache.TypedCache[entry[T]], key string, at time.Time, v T) {
	if tc == nil {
		return
	}
	if err := tc.Set(ctx, key, &entry[T]{CapturedAt: at, Payload: v}); err != nil {
		e.logger.Warn("statistics cache write failed", "key", key, "error", err)
	}
}

// breakdown converts grouped counts into items with percent of total.
func breakdown(groups []store.GroupCount, total int64) []model.BreakdownItem {
	items := make([]model.BreakdownItem, 0, len(groups))
	for _, g := range groups {
		var pct float64
		if total > 0 {
			pct = round1(float64(g.Count) / float64(total) * 100)
		}
		items = append(items, model.BreakdownItem{Value: g.Value, Count: g.Count, Percent: pct})
	}
	return items
}

func assign(b *model.Breakdowns, dim store.Dimension, items []model.BreakdownItem) error {
	switch dim {
	case store.DimDevice:
		b.Device = items
	case store.DimBrowser:
		b.Browser = items
	case store.DimCountry:
		b.Country = items
	case store.DimRegion:
		b.Region = items
	case store.DimCity:
		b.City = items
	case store.DimOS:
		b.OS = items
	case store.DimLanguage:
		b.Language = items
	case store.DimTimezone:
		b.Timezone = items
	case store.DimOrganization:
		b.Organization = items
	default:
		return fmt.Errorf("unknown dimension %q", dim)
	}
	return nil
}

// fillDays returns n consecutive buckets starting at since, taking values
// from rows where a date matches. Averages are rounded to one decimal.
func fillDays(rows []model.DayBucket, since time.Time, n int) []model.DayBucket {
	byDate := make(map[string]model.DayBucket, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}

	days := make([]model.DayBucket, 0, n)
	for i := range n {
		date := since.AddDate(0, 0, i).Format("2006-01-02")
		d, ok := byDate[date]
		if !ok {
			d = model.DayBucket{Date: date}
		}
		d.AveragePages = round1(d.AveragePages)
		d.AverageDurationMinutes = round1(d.AverageDurationMinutes)
		days = append(days, d)
	}
	return days
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
