// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds the handlers and middleware mounted by NewRouter.
type RouterConfig struct {
	Stats     *StatsHandler
	Health    *HealthHandler
	Metrics   http.Handler                    // optional /metrics endpoint
	RateLimit func(http.Handler) http.Handler // optional, applied to /api
	AdminAuth func(http.Handler) http.Handler // guards cache clearing, nil leaves it unmounted
	Tracking  func(http.Handler) http.Handler // optional, applied to Site
	Site      http.Handler                    // optional catch-all for tracked pages
}

// NewRouter builds the HTTP router.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", cfg.Health.Health)
	r.Get("/health/live", cfg.Health.Liveness)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}
		r.Get("/stats", cfg.Stats.Stats)
		r.Get("/trends", cfg.Stats.Trends)
		if cfg.AdminAuth != nil {
			r.With(cfg.AdminAuth).Post("/cache/clear", cfg.Stats.ClearCache)
		}
	})

	if cfg.Site != nil {
		site := cfg.Site
		if cfg.Tracking != nil {
			site = cfg.Tracking(site)
		}
		r.Handle("/*", site)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not_found", "Not found")
	})

	return r
}
