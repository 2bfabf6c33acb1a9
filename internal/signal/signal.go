// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package signal pulls the raw per-request tracking signals out of an
// inbound HTTP request.
package signal

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"golang.org/x/text/language"
)

// Signals holds the raw request attributes used for tracking.
type Signals struct {
	IP             string // Empty when no valid address could be found
	UserAgent      string
	Referrer       string
	Path           string
	AcceptLanguage string
}

// FromRequest extracts tracking signals. When trustProxy is true the
// Client-IP, X-Real-IP and X-Forwarded-For headers are consulted before
// RemoteAddr. The returned IP is validated; an unparseable address yields
// an empty IP.
func FromRequest(r *http.Request, trustProxy bool) Signals {
	return Signals{
		IP:             ClientIP(r, trustProxy),
		UserAgent:      r.UserAgent(),
		Referrer:       r.Referer(),
		Path:           r.URL.RequestURI(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
	}
}

// ClientIP returns the validated client address for a request.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, h := range []string{"Client-IP", "X-Real-IP", "X-Forwarded-For"} {
			v := r.Header.Get(h)
			if v == "" {
				continue
			}
			// X-Forwarded-For lists the originating client first
			if idx := strings.Index(v, ","); idx >= 0 {
				v = v[:idx]
			}
			return normalizeIP(v)
		}
	}

	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return normalizeIP(host)
}

func normalizeIP(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}

// PrimaryLanguage returns the base language of the highest-weighted
// Accept-Language entry (e.g. "en" for "en-US,en;q=0.9"), or "" if none.
func PrimaryLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	base, conf := tags[0].Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}
