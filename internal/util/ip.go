// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util holds small helpers shared by the enrichment sources.
package util

import (
	"net"
	"net/netip"
)

// reservedPrefixes are private and reserved ranges that no geolocation or
// organization source can describe.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),      // RFC 1918 - private
	netip.MustParsePrefix("172.16.0.0/12"),   // RFC 1918 - private
	netip.MustParsePrefix("192.168.0.0/16"),  // RFC 1918 - private
	netip.MustParsePrefix("127.0.0.0/8"),     // RFC 1122 - loopback
	netip.MustParsePrefix("169.254.0.0/16"),  // RFC 3927 - link-local
	netip.MustParsePrefix("0.0.0.0/8"),       // RFC 1122 - "this" network
	netip.MustParsePrefix("100.64.0.0/10"),   // RFC 6598 - shared address (CGNAT)
	netip.MustParsePrefix("192.0.0.0/24"),    // RFC 6890 - IETF protocol assignments
	netip.MustParsePrefix("192.0.2.0/24"),    // RFC 5737 - documentation
	netip.MustParsePrefix("198.18.0.0/15"),   // RFC 2544 - benchmarking
	netip.MustParsePrefix("198.51.100.0/24"), // RFC 5737 - documentation
	netip.MustParsePrefix("203.0.113.0/24"),  // RFC 5737 - documentation
	netip.MustParsePrefix("224.0.0.0/4"),     // RFC 5771 - multicast
	netip.MustParsePrefix("240.0.0.0/4"),     // RFC 1112 - reserved
	netip.MustParsePrefix("::1/128"),         // IPv6 loopback
	netip.MustParsePrefix("fe80::/10"),       // IPv6 link-local
	netip.MustParsePrefix("fc00::/7"),        // RFC 4193 - IPv6 unique local
	netip.MustParsePrefix("::/128"),          // IPv6 unspecified
}

// IsPrivateAddr reports whether s is not a parseable address or falls
// within a private or reserved range.
func IsPrivateAddr(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return true
	}
	return isReserved(addr.Unmap())
}

// IsPrivateIP is IsPrivateAddr for a parsed net.IP. A nil IP is private.
func IsPrivateIP(ip net.IP) bool {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return true
	}
	return isReserved(addr.Unmap())
}

func isReserved(addr netip.Addr) bool {
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
