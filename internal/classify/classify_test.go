// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package classify

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	chromeDesktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	firefoxLinuxUA  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	safariMacUA     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15"
	iphoneUA        = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	androidUA       = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.144 Mobile Safari/537.36"
	ie11UA          = "Mozilla/5.0 (Windows NT 10.0; Trident/7.0; rv:11.0) like Gecko"
	tabletUA        = "Mozilla/5.0 (Tablet; rv:115.0) Gecko/115.0 Firefox/115.0"
)

func TestUAClassifier_Classify(t *testing.T) {
	c := NewUAClassifier()

	tests := []struct {
		name string
		ua   string
		want UAInfo
	}{
		{"Chrome on Windows", chromeDesktopUA, UAInfo{"Chrome", "120.0", "Windows", DeviceDesktop}},
		{"Firefox on Linux", firefoxLinuxUA, UAInfo{"Firefox", "121.0", "Linux", DeviceDesktop}},
		{"Safari on macOS", safariMacUA, UAInfo{"Safari", "605.1.15", "Mac OS", DeviceDesktop}},
		// "Mac OS X" appears in iOS agents and precedes the iPhone rule.
		{"Safari on iPhone", iphoneUA, UAInfo{"Safari", "604.1", "Mac OS", DeviceMobile}},
		// Android agents also carry "Linux", which wins by precedence.
		{"Chrome on Android", androidUA, UAInfo{"Chrome", "120.0.6099.144", "Linux", DeviceMobile}},
		{"Internet Explorer 11", ie11UA, UAInfo{"Internet Explorer", "7.0", "Windows", DeviceDesktop}},
		{"Firefox on tablet", tabletUA, UAInfo{"Firefox", "115.0", UnknownOS, DeviceTablet}},
		{"unmatched agent", "SomeAgent/1.0", UAInfo{UnknownBrowser, UnknownVersion, UnknownOS, DeviceDesktop}},
		{"empty agent", "", UAInfo{UnknownBrowser, UnknownVersion, UnknownOS, UnknownDevice}},
		{"whitespace agent", "   ", UAInfo{UnknownBrowser, UnknownVersion, UnknownOS, UnknownDevice}},
		{"lower-case tokens", "mozilla/5.0 (windows nt 10.0) firefox/99.0", UAInfo{"Firefox", "99.0", "Windows", DeviceDesktop}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.ua))
		})
	}
}

func TestUAClassifier_Deterministic(t *testing.T) {
	c := NewUAClassifier()
	for _, ua := range []string{chromeDesktopUA, iphoneUA, androidUA, ie11UA, "", "Googlebot/2.1"} {
		first := c.Classify(ua)
		for range 5 {
			if got := c.Classify(ua); got != first {
				t.Fatalf("Classify(%q) = %+v, previously %+v", ua, got, first)
			}
		}
	}
}

func TestUAClassifier_SafariRequiresNoChrome(t *testing.T) {
	c := NewUAClassifier()
	// Chrome agents always include a Safari token; Chrome must win.
	info := c.Classify("Mozilla/5.0 AppleWebKit/537.36 Safari/537.36 Chrome/99.0")
	assert.Equal(t, "Chrome", info.BrowserName)
	assert.Equal(t, "99.0", info.BrowserVersion)
}

func TestUAClassifier_CustomRules(t *testing.T) {
	c := NewUAClassifierWithRules(
		[]BrowserRule{{Name: "Edge", Pattern: regexp.MustCompile(`(?i)edg/([0-9.]+)`)}},
		[]Rule{{Label: "TV", Pattern: regexp.MustCompile(`(?i)smart-tv`)}},
		[]Rule{{Label: "Tizen", Pattern: regexp.MustCompile(`(?i)tizen`)}},
	)

	info := c.Classify("Mozilla/5.0 (SMART-TV; Tizen 6.0) Edg/120.1")
	assert.Equal(t, UAInfo{"Edge", "120.1", "Tizen", "TV"}, info)
}

func TestBotClassifier_Match(t *testing.T) {
	c := NewBotClassifier(LevelNormal)

	tests := []struct {
		name     string
		ua       string
		org      string
		bot      bool
		reason   string
		category string
	}{
		{"human chrome unknown org", chromeDesktopUA, "Unknown", false, "", ""},
		{"human chrome no org", chromeDesktopUA, "", false, "", ""},
		{"googlebot", "Googlebot/2.1", "", true, "user_agent", "search_engine"},
		{"googlebot residential org", "Googlebot/2.1 (+http://www.google.com/bot.html)", "AS7922 Comcast Cable", true, "user_agent", "search_engine"},
		{"facebook preview", "facebookexternalhit/1.1", "", true, "user_agent", "social_preview"},
		{"generic crawler", "Mozilla/5.0 (compatible; SemrushBot/7~bl)", "", true, "user_agent", "crawler"},
		{"uptime probe", "Pingdom.com_check/1.0", "", true, "user_agent", "monitoring"},
		{"headless chrome", "Mozilla/5.0 (X11) HeadlessChrome/120.0", "", true, "user_agent", "automation"},
		{"curl", "curl/8.1.2", "", true, "user_agent", "http_client"},
		{"python requests", "python-requests/2.31", "", true, "user_agent", "http_client"},
		{"whatsapp preview", "WhatsApp/2.23.20.0", "", true, "user_agent", "preview_app"},
		{"compatible signature", "Mozilla/5.0 (compatible; MSIE 9.0; Windows NT 6.1)", "", true, "user_agent", "suspicious"},
		{"cloud origin", chromeDesktopUA, "AS16509 Amazon.com, Inc.", true, "organization", ""},
		{"hosting origin upper case", chromeDesktopUA, "AS24940 HETZNER ONLINE GMBH", true, "organization", ""},
		{"empty agent", "", "", true, "empty_user_agent", ""},
		{"empty agent residential org", "", "AS7922 Comcast Cable", true, "empty_user_agent", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Match(tt.ua, tt.org)
			assert.Equal(t, tt.bot, v.Bot)
			assert.Equal(t, tt.reason, v.Reason)
			assert.Equal(t, tt.category, v.Category)
			assert.Equal(t, tt.bot, c.IsBot(tt.ua, tt.org))
		})
	}
}

func TestBotClassifier_Levels(t *testing.T) {
	org := "AS14061 DigitalOcean, LLC"

	assert.False(t, NewBotClassifier(LevelLenient).IsBot(chromeDesktopUA, org), "lenient ignores organization")
	assert.True(t, NewBotClassifier(LevelNormal).IsBot(chromeDesktopUA, org))
	assert.True(t, NewBotClassifier(LevelStrict).IsBot(chromeDesktopUA, org))
	assert.False(t, NewBotClassifier(LevelStrict).IsBot(chromeDesktopUA, "Unknown"))
	assert.True(t, NewBotClassifier("").IsBot(chromeDesktopUA, org), "empty level behaves as normal")
}

func TestBotClassifier_Classify(t *testing.T) {
	c := NewBotClassifier(LevelNormal)
	assert.Equal(t, Human, c.Classify(chromeDesktopUA, "Unknown"))
	assert.Equal(t, Bot, c.Classify("Googlebot/2.1", "Unknown"))
	assert.Equal(t, Bot, c.Classify("", ""))
}

func TestBotClassifier_CustomRulesAreLowerCased(t *testing.T) {
	c := NewBotClassifierWithRules(
		[]Category{{Name: "internal", Patterns: []string{"AcmeProbe", ""}}},
		[]string{"ACME Hosting", ""},
		LevelNormal,
	)

	assert.Equal(t, Verdict{Bot: true, Reason: "user_agent", Category: "internal", Pattern: "acmeprobe"},
		c.Match("acmeprobe/2.0", ""))
	assert.True(t, c.IsBot(chromeDesktopUA, "AS1 acme hosting ltd"))
	assert.False(t, c.IsBot("Googlebot/2.1", ""), "default categories are replaced")
}
