// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the application.
package model

import "time"

// Placeholder values stored for unresolved fields.
const (
	Unknown        = "Unknown"
	DirectReferrer = "Direct"
)

// VisitEvent is one tracked request. Only PageCount and LastActivity change
// after insertion.
type VisitEvent struct {
	ID             int64     `json:"id"`
	IP             string    `json:"ip"`
	Fingerprint    string    `json:"fingerprint"`
	Organization   string    `json:"organization"`
	UserAgent      string    `json:"user_agent"`
	Device         string    `json:"device"`
	OS             string    `json:"os"`
	BrowserName    string    `json:"browser_name"`
	BrowserVersion string    `json:"browser_version"`
	AcceptLanguage string    `json:"accept_language"`
	Language       string    `json:"language"`
	Referrer       string    `json:"referrer"`
	Path           string    `json:"path"`
	Country        string    `json:"country"`
	Region         string    `json:"region"`
	City           string    `json:"city"`
	Timezone       string    `json:"timezone"`
	Classification string    `json:"classification"`
	SessionID      string    `json:"session_id"`
	PageCount      int       `json:"page_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivity   time.Time `json:"last_activity"`
}

// BreakdownItem is one row of a grouped breakdown.
type BreakdownItem struct {
	Value   string  `json:"value"`
	Count   int64   `json:"count"`
	Percent float64 `json:"percent"`
}

// SessionSummary aggregates session activity over a range.
type SessionSummary struct {
	Count                  int64   `json:"count"`
	AveragePages           float64 `json:"average_pages"`
	AverageDurationMinutes float64 `json:"average_duration_minutes"`
}

// Breakdowns groups visit counts by dimension. A disabled dimension is empty.
type Breakdowns struct {
	Device       []BreakdownItem `json:"device"`
	Browser      []BreakdownItem `json:"browser"`
	Country      []BreakdownItem `json:"country"`
	Region       []BreakdownItem `json:"region"`
	City         []BreakdownItem `json:"city"`
	OS           []BreakdownItem `json:"os"`
	Language     []BreakdownItem `json:"language"`
	Timezone     []BreakdownItem `json:"timezone"`
	Organization []BreakdownItem `json:"organization"`
}

// StatsSnapshot is the aggregate view of one range.
type StatsSnapshot struct {
	Range          string         `json:"range"`
	Total          int64          `json:"total"`
	Humans         int64          `json:"humans"`
	Bots           int64          `json:"bots"`
	Breakdowns     Breakdowns     `json:"breakdowns"`
	Sessions       SessionSummary `json:"sessions"`
	RecentVisitors []VisitEvent   `json:"recent_visitors"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// EmptySnapshot returns a zeroed snapshot for rng with non-nil slices.
func EmptySnapshot(rng string, at time.Time) StatsSnapshot {
	return StatsSnapshot{
		Range: rng,
		Breakdowns: Breakdowns{
			Device:       []BreakdownItem{},
			Browser:      []BreakdownItem{},
			Country:      []BreakdownItem{},
			Region:       []BreakdownItem{},
			City:         []BreakdownItem{},
			OS:           []BreakdownItem{},
			Language:     []BreakdownItem{},
			Timezone:     []BreakdownItem{},
			Organization: []BreakdownItem{},
		},
		RecentVisitors: []VisitEvent{},
		GeneratedAt:    at,
	}
}

// DayBucket is one day of the trailing trend series.
type DayBucket struct {
	Date                   string  `json:"date"` // YYYY-MM-DD
	Visits                 int64   `json:"visits"`
	Sessions               int64   `json:"sessions"`
	UniqueVisitors         int64   `json:"unique_visitors"`
	HumanVisitors          int64   `json:"human_visitors"`
	BotVisitors            int64   `json:"bot_visitors"`
	AveragePages           float64 `json:"average_pages"`
	AverageDurationMinutes float64 `json:"average_duration_minutes"`
}
