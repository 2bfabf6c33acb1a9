// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers.
package testutil

import (
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/olegiv/qlyx-go/internal/store"
)

// TestLogger creates a silent test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database with migrations applied.
// The database is closed when the test finishes.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "qlyx-test.db")

	db, err := store.NewDB(store.DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(db, store.DriverSQLite); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	return db
}

// TestStore returns a Store over a fresh TestDB.
func TestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(TestDB(t), store.DriverSQLite)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return s
}

// Jar is an in-memory cookie jar for exercising identity handling.
type Jar struct {
	In      map[string]string
	Written []*http.Cookie
	Started bool // Simulates a response whose headers were already sent
}

// NewJar creates a Jar holding the given request cookies.
func NewJar(in map[string]string) *Jar {
	if in == nil {
		in = map[string]string{}
	}
	return &Jar{In: in}
}

// Get implements identity.CookieJar.
func (j *Jar) Get(name string) (string, bool) {
	v, ok := j.In[name]
	return v, ok && v != ""
}

// Set implements identity.CookieJar.
func (j *Jar) Set(c *http.Cookie) bool {
	if j.Started {
		return false
	}
	j.Written = append(j.Written, c)
	return true
}

// Cookie returns the last written cookie with name, or nil.
func (j *Jar) Cookie(name string) *http.Cookie {
	for i := len(j.Written) - 1; i >= 0; i-- {
		if j.Written[i].Name == name {
			return j.Written[i]
		}
	}
	return nil
}
