// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/qlyx-go/internal/model"
)

var baseTime = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

const (
	classHuman = "HUMAN"
	classBot   = "BOT"
)

// testDB creates a migrated temporary SQLite database.
func testDB(t *testing.T, driver string) *sql.DB {
	t.Helper()

	db, err := NewDB(driver, filepath.Join(t.TempDir(), "qlyx-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db, driver))
	return db
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(testDB(t, DriverSQLite), DriverSQLite)
	require.NoError(t, err)
	return s
}

// sessionVisits returns all visits of a session, oldest first.
func sessionVisits(ctx context.Context, s *Store, sessionID string) ([]model.VisitEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+visitColumns+" FROM visit_events WHERE session_id = ? ORDER BY created_at ASC, id ASC",
		sessionID)
	if err != nil {
		return nil, err
	}
	return scanVisits(rows)
}

func visit(ip, class, session string, at time.Time) *model.VisitEvent {
	return &model.VisitEvent{
		IP:             ip,
		Fingerprint:    "fp-" + ip,
		Organization:   model.Unknown,
		UserAgent:      "Mozilla/5.0",
		Device:         "Desktop",
		OS:             "Windows",
		BrowserName:    "Chrome",
		BrowserVersion: "120.0",
		Language:       "en",
		Referrer:       model.DirectReferrer,
		Path:           "/",
		Country:        "US",
		Region:         model.Unknown,
		City:           model.Unknown,
		Timezone:       model.Unknown,
		Classification: class,
		SessionID:      session,
		CreatedAt:      at,
	}
}

func mustInsert(t *testing.T, s *Store, v *model.VisitEvent) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), v)
	require.NoError(t, err)
	return id
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(nil, "postgres")
	assert.Error(t, err)

	_, err = NewDB("postgres", "")
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := testDB(t, DriverSQLite)
	assert.NoError(t, Migrate(db, DriverSQLite))
}

func TestInsert_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	v := visit("198.51.100.7", classHuman, "0123456789abcdef0123456789abcdef", baseTime)
	v.Path = "/blog?id=7"
	v.AcceptLanguage = "en-US,en;q=0.9"

	id := mustInsert(t, s, v)
	assert.Equal(t, id, v.ID)
	assert.Equal(t, 1, v.PageCount)

	got, err := sessionVisits(ctx, s, v.SessionID)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, *v, got[0])
}

func TestTouchSession_UpdatesOnlyNewestRow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	session := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	mustInsert(t, s, visit("198.51.100.1", classHuman, session, baseTime))
	mustInsert(t, s, visit("198.51.100.1", classHuman, session, baseTime.Add(time.Minute)))
	mustInsert(t, s, visit("198.51.100.2", classHuman, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", baseTime.Add(2*time.Minute)))

	n, err := s.TouchSession(ctx, session, baseTime.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := sessionVisits(ctx, s, session)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].PageCount)
	assert.Equal(t, 2, got[1].PageCount)
	assert.Equal(t, baseTime.Add(5*time.Minute), got[1].LastActivity)
	assert.Equal(t, got[0].CreatedAt, got[0].LastActivity)
}

func TestTouchSession_TieBrokenByID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	session := "cccccccccccccccccccccccccccccccc"

	mustInsert(t, s, visit("198.51.100.1", classHuman, session, baseTime))
	second := mustInsert(t, s, visit("198.51.100.1", classHuman, session, baseTime))

	_, err := s.TouchSession(ctx, session, baseTime.Add(time.Minute))
	require.NoError(t, err)

	got, err := sessionVisits(ctx, s, session)
	require.NoError(t, err)
	for _, v := range got {
		if v.ID == second {
			assert.Equal(t, 2, v.PageCount)
		} else {
			assert.Equal(t, 1, v.PageCount)
		}
	}
}

func TestTouchSession_NoRows(t *testing.T) {
	s := testStore(t)

	n, err := s.TouchSession(context.Background(), "dddddddddddddddddddddddddddddddd", baseTime)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.TouchSession(context.Background(), "", baseTime)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAggregates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sessionA := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	sessionB := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	// Outside the window.
	mustInsert(t, s, visit("198.51.100.9", classHuman, "", baseTime.AddDate(0, 0, -3)))

	a1 := visit("198.51.100.1", classHuman, sessionA, baseTime.Add(-2*time.Hour))
	a1.LastActivity = a1.CreatedAt.Add(10 * time.Minute)
	a1.PageCount = 3
	mustInsert(t, s, a1)

	b1 := visit("198.51.100.2", classHuman, sessionB, baseTime.Add(-time.Hour))
	b1.Country = "DE"
	b1.BrowserName = "Firefox"
	mustInsert(t, s, b1)

	bot := visit("66.249.66.1", classBot, "", baseTime.Add(-30*time.Minute))
	bot.Country = "DE"
	bot.Device = "Unknown"
	mustInsert(t, s, bot)

	since := baseTime.AddDate(0, 0, -1)

	totals, err := s.Totals(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, Totals{Total: 3, Humans: 2, Bots: 1}, totals)

	countries, err := s.GroupBy(ctx, DimCountry, since)
	require.NoError(t, err)
	assert.Equal(t, []GroupCount{{"DE", 2}, {"US", 1}}, countries)

	browsers, err := s.GroupBy(ctx, DimBrowser, since)
	require.NoError(t, err)
	assert.Equal(t, []GroupCount{{"Chrome", 2}, {"Firefox", 1}}, browsers)

	_, err = s.GroupBy(ctx, Dimension("nope"), since)
	assert.Error(t, err)

	sessions, err := s.Sessions(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sessions.Count)
	assert.InDelta(t, 2.0, sessions.AveragePages, 0.001)
	assert.InDelta(t, 5.0, sessions.AverageDurationMinutes, 0.01)

	recent, err := s.Recent(ctx, since, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "66.249.66.1", recent[0].IP)
	assert.Equal(t, "198.51.100.2", recent[1].IP)

	none, err := s.Recent(ctx, since, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAggregates_EmptyTable(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	totals, err := s.Totals(ctx, baseTime)
	require.NoError(t, err)
	assert.Zero(t, totals)

	sessions, err := s.Sessions(ctx, baseTime)
	require.NoError(t, err)
	assert.Zero(t, sessions)

	groups, err := s.GroupBy(ctx, DimOS, baseTime)
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)

	days, err := s.DailyTrends(ctx, baseTime)
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestDailyTrends(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	day1 := time.Date(2026, 10, 13, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	mustInsert(t, s, visit("198.51.100.1", classHuman, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", day1))
	mustInsert(t, s, visit("198.51.100.1", classHuman, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", day1.Add(time.Minute)))
	mustInsert(t, s, visit("198.51.100.2", classHuman, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", day1.Add(time.Hour)))
	mustInsert(t, s, visit("66.249.66.1", classBot, "", day1.Add(2*time.Hour)))
	mustInsert(t, s, visit("66.249.66.1", classBot, "", day2))

	days, err := s.DailyTrends(ctx, day1.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, "2026-10-13", days[0].Date)
	assert.Equal(t, int64(4), days[0].Visits)
	assert.Equal(t, int64(2), days[0].Sessions)
	assert.Equal(t, int64(3), days[0].UniqueVisitors)
	assert.Equal(t, int64(2), days[0].HumanVisitors)
	assert.Equal(t, int64(1), days[0].BotVisitors)
	assert.InDelta(t, 1.0, days[0].AveragePages, 0.001)

	assert.Equal(t, "2026-10-14", days[1].Date)
	assert.Equal(t, int64(1), days[1].Visits)
	assert.Equal(t, int64(0), days[1].Sessions)
	assert.Equal(t, int64(0), days[1].HumanVisitors)
	assert.Equal(t, int64(1), days[1].BotVisitors)
}

func TestCGODriver_TouchSession(t *testing.T) {
	db := testDB(t, DriverSQLiteCGO)
	s, err := New(db, DriverSQLiteCGO)
	require.NoError(t, err)
	ctx := context.Background()
	session := "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

	mustInsert(t, s, visit("198.51.100.1", classHuman, session, baseTime))
	n, err := s.TouchSession(ctx, session, baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := sessionVisits(ctx, s, session)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].PageCount)
	assert.Equal(t, baseTime, got[0].CreatedAt)
}

func TestMySQLDialect_TouchSessionStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s, err := New(db, DriverMySQL)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT 1")).
		WithArgs("2026-10-15 12:00:00", "ffffffffffffffffffffffffffffffff").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := s.TouchSession(context.Background(), "ffffffffffffffffffffffffffffffff", baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_QueryErrorsAreWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s, err := New(db, DriverSQLite)
	require.NoError(t, err)
	boom := errors.New("database is locked")
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO visit_events").WillReturnError(boom)
	_, err = s.Insert(ctx, visit("198.51.100.1", classHuman, "", baseTime))
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT").WillReturnError(boom)
	_, err = s.Totals(ctx, baseTime)
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT").WillReturnError(boom)
	_, err = s.GroupBy(ctx, DimDevice, baseTime)
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT").WillReturnError(boom)
	_, err = s.DailyTrends(ctx, baseTime)
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBTime_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want time.Time
	}{
		{"storage layout", "2026-10-15 12:00:00", baseTime},
		{"bytes", []byte("2026-10-15 12:00:00"), baseTime},
		{"rfc3339", "2026-10-15T14:00:00+02:00", baseTime},
		{"time value", baseTime.In(time.FixedZone("X", 3600)), baseTime},
		{"nil", nil, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d dbTime
			require.NoError(t, d.Scan(tt.src))
			assert.True(t, tt.want.Equal(d.Time), "got %v", d.Time)
		})
	}

	var d dbTime
	assert.Error(t, d.Scan("yesterday"))
	assert.Error(t, d.Scan(42))
}
