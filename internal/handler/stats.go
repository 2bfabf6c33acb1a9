// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/olegiv/qlyx-go/internal/model"
)

// StatsService is the read side of the statistics engine.
type StatsService interface {
	GetStats(ctx context.Context, rng string) model.StatsSnapshot
	GetDailyTrends(ctx context.Context) []model.DayBucket
	ClearCache(ctx context.Context) error
}

// StatsHandler serves statistics snapshots and trends as JSON.
type StatsHandler struct {
	stats  StatsService
	logger *slog.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats StatsService, logger *slog.Logger) *StatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{stats: stats, logger: logger}
}

// Stats handles GET /api/stats?range=24h|7d|1m|1y.
// Unknown ranges are answered with the 24h snapshot.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snap := h.stats.GetStats(r.Context(), r.URL.Query().Get("range"))
	WriteSuccess(w, snap)
}

// Trends handles GET /api/trends.
func (h *StatsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.stats.GetDailyTrends(r.Context()))
}

// ClearCache handles POST /api/cache/clear.
func (h *StatsHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.stats.ClearCache(r.Context()); err != nil {
		h.logger.Error("failed to clear statistics cache", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "cache_clear_failed", "Failed to clear cache")
		return
	}
	WriteSuccess(w, map[string]bool{"cleared": true})
}
