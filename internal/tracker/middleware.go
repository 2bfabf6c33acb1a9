// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracker

import (
	"net/http"
	"strings"

	"github.com/olegiv/qlyx-go/internal/identity"
	"github.com/olegiv/qlyx-go/internal/signal"
)

// responseWriter wraps http.ResponseWriter to record whether headers were sent.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.status = http.StatusOK
		rw.wroteHeader = true
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) started() bool {
	return rw.wroteHeader
}

// MiddlewareOptions configures which requests the middleware tracks.
type MiddlewareOptions struct {
	TrustProxyHeaders bool
	ExcludePaths      []string // Path prefixes never tracked
}

// Middleware returns HTTP middleware that tracks page views. Tracking runs
// before the wrapped handler so session and identity cookies can still be set.
func (t *Tracker) Middleware(opts MiddlewareOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !shouldTrack(r, opts.ExcludePaths) {
				t.logger.Debug("skipping non-trackable request", "path", r.URL.Path, "method", r.Method)
				next.ServeHTTP(w, r)
				return
			}

			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			jar := identity.NewHTTPJar(rw, r, rw.started)
			t.Track(r.Context(), signal.FromRequest(r, opts.TrustProxyHeaders), jar)

			next.ServeHTTP(rw, r)
		})
	}
}

// Skip lists for shouldTrack.
var (
	staticPrefixes = []string{
		"/static/",
		"/assets/",
		"/media/",
		"/uploads/",
		"/favicon.",
		"/robots.txt",
		"/sitemap",
		"/.well-known/",
	}

	staticExtensions = []string{
		".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp",
		".woff", ".woff2", ".ttf", ".eot", ".otf",
		".xml", ".json", ".txt", ".pdf", ".map",
		".mp3", ".mp4", ".webm", ".ogg", ".wav",
		".zip", ".tar", ".gz", ".rar",
	}

	internalPrefixes = []string{
		"/api/",
		"/health",
		"/metrics",
	}
)

// shouldTrack determines if a request should be tracked.
func shouldTrack(r *http.Request, excludePaths []string) bool {
	// Only page loads
	if r.Method != http.MethodGet {
		return false
	}

	path := r.URL.Path
	for _, prefix := range staticPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}

	pathLower := strings.ToLower(path)
	for _, ext := range staticExtensions {
		if strings.HasSuffix(pathLower, ext) {
			return false
		}
	}

	for _, prefix := range internalPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}

	for _, prefix := range excludePaths {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return false
		}
	}

	return true
}
