// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"fmt"
	"time"
)

// timeLayout is the storage format for timestamps, always in UTC.
const timeLayout = "2006-01-02 15:04:05"

// dialect holds the SQL fragments that differ between SQLite and MySQL.
type dialect struct {
	// durationMinutes evaluates to the minutes between created_at and last_activity.
	durationMinutes string
	// day evaluates to created_at as YYYY-MM-DD.
	day string
	// touchSession increments page_count on the newest row of a session.
	// Parameters: last_activity, session_id.
	touchSession string
}

var (
	sqliteDialect = dialect{
		durationMinutes: "(julianday(last_activity) - julianday(created_at)) * 1440.0",
		day:             "substr(created_at, 1, 10)",
		touchSession: `
			UPDATE visit_events
			SET last_activity = ?, page_count = page_count + 1
			WHERE id = (
				SELECT id FROM visit_events
				WHERE session_id = ?
				ORDER BY created_at DESC, id DESC
				LIMIT 1
			)`,
	}

	mysqlDialect = dialect{
		durationMinutes: "TIMESTAMPDIFF(SECOND, created_at, last_activity) / 60.0",
		day:             "DATE_FORMAT(created_at, '%Y-%m-%d')",
		touchSession: `
			UPDATE visit_events
			SET last_activity = ?, page_count = page_count + 1
			WHERE session_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT 1`,
	}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, DriverSQLiteCGO:
		return sqliteDialect, nil
	case DriverMySQL:
		return mysqlDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// dbTime scans timestamps stored as text (SQLite) or DATETIME (MySQL).
type dbTime struct {
	Time time.Time
}

var parseLayouts = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05",
}

// Scan implements sql.Scanner.
func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		d.Time = v.UTC()
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (d *dbTime) parse(s string) error {
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
