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

// Store reads and writes visit events.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// New creates a Store over db for the given driver name.
func New(db *sql.DB, driver string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: d}, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const visitColumns = `id, ip, fingerprint, organization, user_agent, device, os,
	browser_name, browser_version, accept_language, language, referrer, path,
	country, region, city, timezone, classification, session_id, page_count,
	created_at, last_activity`

// Insert appends a visit event and returns its id. PageCount defaults to 1
// and LastActivity to CreatedAt.
func (s *Store) Insert(ctx context.Context, v *model.VisitEvent) (int64, error) {
	if v.PageCount <= 0 {
		v.PageCount = 1
	}
	if v.LastActivity.IsZero() {
		v.LastActivity = v.CreatedAt
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO visit_events (
			ip, fingerprint, organization, user_agent, device, os,
			browser_name, browser_version, accept_language, language, referrer, path,
			country, region, city, timezone, classification, session_id, page_count,
			created_at, last_activity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.IP, v.Fingerprint, v.Organization, v.UserAgent, v.Device, v.OS,
		v.BrowserName, v.BrowserVersion, v.AcceptLanguage, v.Language, v.Referrer, v.Path,
		v.Country, v.Region, v.City, v.Timezone, v.Classification, v.SessionID, v.PageCount,
		formatTime(v.CreatedAt), formatTime(v.LastActivity),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting visit: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading visit id: %w", err)
	}
	v.ID = id
	return id, nil
}

// TouchSession sets last_activity and increments page_count on the most
// recently created row of the session. It returns the number of rows
// changed, which is 0 or 1.
func (s *Store) TouchSession(ctx context.Context, sessionID string, at time.Time) (int64, error) {
	if sessionID == "" {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx, s.dialect.touchSession, formatTime(at), sessionID)
	if err != nil {
		return 0, fmt.Errorf("updating session %s: %w", sessionID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return n, nil
}

func scanVisits(rows *sql.Rows) ([]model.VisitEvent, error) {
	defer func() { _ = rows.Close() }()

	visits := []model.VisitEvent{}
	for rows.Next() {
		var (
			v                     model.VisitEvent
			created, lastActivity dbTime
		)
		if err := rows.Scan(
			&v.ID, &v.IP, &v.Fingerprint, &v.Organization, &v.UserAgent, &v.Device, &v.OS,
			&v.BrowserName, &v.BrowserVersion, &v.AcceptLanguage, &v.Language, &v.Referrer, &v.Path,
			&v.Country, &v.Region, &v.City, &v.Timezone, &v.Classification, &v.SessionID, &v.PageCount,
			&created, &lastActivity,
		); err != nil {
			return nil, fmt.Errorf("scanning visit: %w", err)
		}
		v.CreatedAt = created.Time
		v.LastActivity = lastActivity.Time
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visits: %w", err)
	}
	return visits, nil
}
