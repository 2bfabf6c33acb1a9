// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/olegiv/qlyx-go/internal/model"
)

// Dimension is a visit attribute that can be grouped on.
type Dimension string

// Breakdown dimensions.
const (
	DimDevice       Dimension = "device"
	DimBrowser      Dimension = "browser"
	DimCountry      Dimension = "country"
	DimRegion       Dimension = "region"
	DimCity         Dimension = "city"
	DimOS           Dimension = "os"
	DimLanguage     Dimension = "language"
	DimTimezone     Dimension = "timezone"
	DimOrganization Dimension = "organization"
)

// dimensionColumns maps each dimension to its column. Only these values are
// ever interpolated into SQL.
var dimensionColumns = map[Dimension]string{
	DimDevice:       "device",
	DimBrowser:      "browser_name",
	DimCountry:      "country",
	DimRegion:       "region",
	DimCity:         "city",
	DimOS:           "os",
	DimLanguage:     "language",
	DimTimezone:     "timezone",
	DimOrganization: "organization",
}

// Totals holds visit counts by classification.
type Totals struct {
	Total  int64
	Humans int64
	Bots   int64
}

// GroupCount is one group of a breakdown query.
type GroupCount struct {
	Value string
	Count int64
}

// Totals counts visits created at or after since.
func (s *Store) Totals(ctx context.Context, since time.Time) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN classification = 'HUMAN' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN classification = 'BOT' THEN 1 ELSE 0 END), 0)
		FROM visit_events
		WHERE created_at >= ?`, formatTime(since)).Scan(&t.Total, &t.Humans, &t.Bots)
	if err != nil {
		return Totals{}, fmt.Errorf("counting visits: %w", err)
	}
	return t, nil
}

// GroupBy counts visits per value of dim, largest group first.
func (s *Store) GroupBy(ctx context.Context, dim Dimension, since time.Time) ([]GroupCount, error) {
	col, ok := dimensionColumns[dim]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}

	query := fmt.Sprintf(`
		SELECT %[1]s, COUNT(*) AS cnt
		FROM visit_events
		WHERE created_at >= ?
		GROUP BY %[1]s
		ORDER BY cnt DESC, %[1]s ASC`, col)

	rows, err := s.db.QueryContext(ctx, query, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("grouping by %s: %w", dim, err)
	}
	defer func() { _ = rows.Close() }()

	groups := []GroupCount{}
	for rows.Next() {
		var g GroupCount
		if err := rows.Scan(&g.Value, &g.Count); err != nil {
			return nil, fmt.Errorf("scanning %s group: %w", dim, err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s groups: %w", dim, err)
	}
	return groups, nil
}

// Sessions summarizes rows that carry a session id. Averages are unrounded.
func (s *Store) Sessions(ctx context.Context, since time.Time) (model.SessionSummary, error) {
	var (
		sum      model.SessionSummary
		avgPages sql.NullFloat64
		avgMins  sql.NullFloat64
	)

	query := fmt.Sprintf(`
		SELECT
			COUNT(DISTINCT session_id),
			AVG(page_count),
			AVG(%s)
		FROM visit_events
		WHERE created_at >= ? AND session_id <> ''`, s.dialect.durationMinutes)

	if err := s.db.QueryRowContext(ctx, query, formatTime(since)).Scan(&sum.Count, &avgPages, &avgMins); err != nil {
		return model.SessionSummary{}, fmt.Errorf("summarizing sessions: %w", err)
	}
	sum.AveragePages = avgPages.Float64
	sum.AverageDurationMinutes = avgMins.Float64
	return sum, nil
}

// Recent returns up to limit visits created at or after since, newest first.
func (s *Store) Recent(ctx context.Context, since time.Time, limit int) ([]model.VisitEvent, error) {
	if limit <= 0 {
		return []model.VisitEvent{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+visitColumns+` FROM visit_events
		WHERE created_at >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, formatTime(since), limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent visits: %w", err)
	}
	return scanVisits(rows)
}

// DailyTrends returns one bucket per day with visits at or after since,
// oldest day first. Days without visits are omitted.
func (s *Store) DailyTrends(ctx context.Context, since time.Time) ([]model.DayBucket, error) {
	query := fmt.Sprintf(`
		SELECT
			%[1]s AS day,
			COUNT(*),
			COUNT(DISTINCT CASE WHEN session_id <> '' THEN session_id END),
			COUNT(DISTINCT ip),
			COUNT(DISTINCT CASE WHEN classification = 'HUMAN' THEN ip END),
			COUNT(DISTINCT CASE WHEN classification = 'BOT' THEN ip END),
			AVG(page_count),
			AVG(%[2]s)
		FROM visit_events
		WHERE created_at >= ?
		GROUP BY %[1]s
		ORDER BY day ASC`, s.dialect.day, s.dialect.durationMinutes)

	rows, err := s.db.QueryContext(ctx, query, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("querying daily trends: %w", err)
	}
	defer func() { _ = rows.Close() }()

	days := []model.DayBucket{}
	for rows.Next() {
		var (
			d                 model.DayBucket
			avgPages, avgMins sql.NullFloat64
		)
		if err := rows.Scan(&d.Date, &d.Visits, &d.Sessions, &d.UniqueVisitors,
			&d.HumanVisitors, &d.BotVisitors, &avgPages, &avgMins); err != nil {
			return nil, fmt.Errorf("scanning trend row: %w", err)
		}
		d.AveragePages = avgPages.Float64
		d.AverageDurationMinutes = avgMins.Float64
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trend rows: %w", err)
	}
	return days, nil
}
