// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package identity derives the anonymous visitor fingerprint, manages the
// identity and session cookies, and anonymizes client addresses.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
	"strings"
)

// FingerprintLength is the length of a fingerprint in hex characters.
const FingerprintLength = 50

// Fingerprint returns a stable one-way hash of the visitor characteristics.
// Identical inputs always yield the same value.
func Fingerprint(ip, userAgent, device, os, browserName, browserVersion string) string {
	var sb strings.Builder
	sb.Grow(len(ip) + len(userAgent) + len(device) + len(os) + len(browserName) + len(browserVersion))
	sb.WriteString(ip)
	sb.WriteString(userAgent)
	sb.WriteString(device)
	sb.WriteString(os)
	sb.WriteString(browserName)
	sb.WriteString(browserVersion)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}

// AnonymizeIP masks the host part of an address.
// For IPv4: zeros the last octet (e.g., 192.168.1.100 -> 192.168.1.0)
// For IPv6: zeros the trailing 64 bits
// Returns an empty string for unparseable input.
func AnonymizeIP(ip string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return ""
	}
	addr = addr.Unmap()

	bits := 64
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.WithZone("").Prefix(bits)
	if err != nil {
		return ""
	}
	return prefix.Addr().String()
}
