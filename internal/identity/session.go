// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package identity

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SessionIDLength is the length of a session token in hex characters.
const SessionIDLength = 32

// CookieJar reads request cookies and writes response cookies.
// Set reports false when the cookie could not be written, e.g. because the
// response has already started.
type CookieJar interface {
	Get(name string) (string, bool)
	Set(cookie *http.Cookie) bool
}

// SessionContext carries the identity resolved for one request.
type SessionContext struct {
	SessionID      string // Empty when session tracking is disabled
	Fingerprint    string
	Resumed        bool // SessionID was read from the request cookie
	SessionIssued  bool // A new session cookie was written
	IdentityIssued bool // The identity cookie was written
}

// Options configures cookie names, lifetimes and feature switches.
type Options struct {
	SessionTracking bool
	SessionCookie   string
	SessionTTL      time.Duration
	IdentityCookie  string
	IdentityTTL     time.Duration
	Secure          bool
}

// DefaultOptions returns the stock cookie settings.
func DefaultOptions() Options {
	return Options{
		SessionTracking: true,
		SessionCookie:   "qlyx_session",
		SessionTTL:      30 * time.Minute,
		IdentityCookie:  "qlyx_user_profile",
		IdentityTTL:     30 * 24 * time.Hour,
	}
}

// Manager issues and reads the identity and session cookies.
type Manager struct {
	opts     Options
	newToken func() (string, error)
	now      func() time.Time
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	return &Manager{opts: opts, newToken: NewSessionID, now: time.Now}
}

// NewSessionID returns a random 32-character hex token.
func NewSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return hex.EncodeToString(id[:]), nil
}

// ValidSessionID reports whether s has the shape of an issued session token.
func ValidSessionID(s string) bool {
	if len(s) != SessionIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Resolve returns the SessionContext for a request. It reuses the session
// cookie when present and well-formed, issues a new one otherwise, and writes
// the identity cookie once when fingerprint is non-empty and no identity
// cookie exists yet.
func (m *Manager) Resolve(jar CookieJar, fingerprint string) SessionContext {
	sc := SessionContext{Fingerprint: fingerprint}

	if m.opts.SessionTracking {
		sc.SessionID, sc.Resumed, sc.SessionIssued = m.session(jar)
	}

	if fingerprint != "" && m.opts.IdentityCookie != "" {
		if _, ok := jar.Get(m.opts.IdentityCookie); !ok {
			sc.IdentityIssued = jar.Set(m.cookie(m.opts.IdentityCookie, fingerprint, m.opts.IdentityTTL))
		}
	}

	return sc
}

// session returns the session id, whether it was resumed from the request
// and whether a new cookie was written.
func (m *Manager) session(jar CookieJar) (id string, resumed, issued bool) {
	if v, ok := jar.Get(m.opts.SessionCookie); ok && ValidSessionID(v) {
		return v, true, false
	}

	id, err := m.newToken()
	if err != nil {
		return "", false, false
	}
	return id, false, jar.Set(m.cookie(m.opts.SessionCookie, id, m.opts.SessionTTL))
}

func (m *Manager) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  m.now().Add(ttl),
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// HTTPJar is a CookieJar backed by an HTTP request/response pair.
type HTTPJar struct {
	r       *http.Request
	w       http.ResponseWriter
	started func() bool
}

// NewHTTPJar creates a cookie jar. started reports whether the response
// headers have been sent; it may be nil.
func NewHTTPJar(w http.ResponseWriter, r *http.Request, started func() bool) *HTTPJar {
	return &HTTPJar{r: r, w: w, started: started}
}

// Get returns the value of a request cookie.
func (j *HTTPJar) Get(name string) (string, bool) {
	c, err := j.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Set writes a response cookie unless the response has already started.
func (j *HTTPJar) Set(cookie *http.Cookie) bool {
	if j.started != nil && j.started() {
		return false
	}
	http.SetCookie(j.w, cookie)
	return true
}
