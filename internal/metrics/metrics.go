// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus counters for the tracking and
// statistics pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors.
type Metrics struct {
	registry *prometheus.Registry

	VisitsTracked     *prometheus.CounterVec
	VisitsIgnored     *prometheus.CounterVec
	StoreErrors       *prometheus.CounterVec
	StatsCache        *prometheus.CounterVec
	EnrichmentLookups *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		VisitsTracked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qlyx_visits_tracked_total",
			Help: "Visits recorded, by visitor classification",
		}, []string{"classification"}),
		VisitsIgnored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qlyx_visits_ignored_total",
			Help: "Requests skipped before recording, by reason",
		}, []string{"reason"}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qlyx_store_errors_total",
			Help: "Event store failures, by operation",
		}, []string{"op"}),
		StatsCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qlyx_stats_cache_total",
			Help: "Statistics cache lookups, by key and result",
		}, []string{"key", "result"}),
		EnrichmentLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qlyx_enrichment_lookups_total",
			Help: "Enrichment lookups, by kind and outcome",
		}, []string{"kind", "status"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Tracked records a stored visit.
func (m *Metrics) Tracked(classification string) {
	if m != nil {
		m.VisitsTracked.WithLabelValues(classification).Inc()
	}
}

// Ignored records a skipped request.
func (m *Metrics) Ignored(reason string) {
	if m != nil {
		m.VisitsIgnored.WithLabelValues(reason).Inc()
	}
}

// StoreError records a failed store operation.
func (m *Metrics) StoreError(op string) {
	if m != nil {
		m.StoreErrors.WithLabelValues(op).Inc()
	}
}

// CacheResult records a statistics cache hit or miss.
func (m *Metrics) CacheResult(key string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.StatsCache.WithLabelValues(key, result).Inc()
}

// Enrichment records the outcome of an enrichment lookup.
func (m *Metrics) Enrichment(kind, status string) {
	if m != nil {
		m.EnrichmentLookups.WithLabelValues(kind, status).Inc()
	}
}
