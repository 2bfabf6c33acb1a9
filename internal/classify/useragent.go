// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package classify derives browser, operating system and device class from a
// user agent string and decides whether a request comes from a human or a bot.
// All rules are ordered data tables evaluated first-match-wins.
package classify

import (
	"regexp"
	"strings"
)

// Fallback values used when no rule matches.
const (
	UnknownBrowser = "Unknown"
	UnknownVersion = "Unknown"
	UnknownOS      = "Unknown OS"
	UnknownDevice  = "Unknown"

	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"
)

// UAInfo holds the classification result for a user agent.
type UAInfo struct {
	BrowserName    string `json:"browser_name"`
	BrowserVersion string `json:"browser_version"`
	OS             string `json:"os"`
	Device         string `json:"device"`
}

// BrowserRule matches a browser token. Pattern must capture the version in
// its first group. Exclude, when set, vetoes an otherwise matching rule.
type BrowserRule struct {
	Name    string
	Pattern *regexp.Regexp
	Exclude *regexp.Regexp
}

// Rule maps a pattern to a label.
type Rule struct {
	Label   string
	Pattern *regexp.Regexp
}

// DefaultBrowserRules returns the browser precedence table.
func DefaultBrowserRules() []BrowserRule {
	return []BrowserRule{
		{Name: "Firefox", Pattern: regexp.MustCompile(`(?i)firefox/([0-9.]+)`)},
		{Name: "Chrome", Pattern: regexp.MustCompile(`(?i)chrome/([0-9.]+)`)},
		{Name: "Safari", Pattern: regexp.MustCompile(`(?i)safari/([0-9.]+)`), Exclude: regexp.MustCompile(`(?i)chrome`)},
		{Name: "Internet Explorer", Pattern: regexp.MustCompile(`(?i)trident/([0-9.]+)`)},
	}
}

// DefaultDeviceRules returns the device precedence table.
func DefaultDeviceRules() []Rule {
	return []Rule{
		{Label: DeviceMobile, Pattern: regexp.MustCompile(`(?i)mobile|android`)},
		{Label: DeviceTablet, Pattern: regexp.MustCompile(`(?i)tablet`)},
	}
}

// DefaultOSRules returns the operating system precedence table.
func DefaultOSRules() []Rule {
	return []Rule{
		{Label: "Windows", Pattern: regexp.MustCompile(`(?i)windows`)},
		{Label: "Mac OS", Pattern: regexp.MustCompile(`(?i)macintosh|mac os x`)},
		{Label: "Linux", Pattern: regexp.MustCompile(`(?i)linux`)},
		{Label: "Android", Pattern: regexp.MustCompile(`(?i)android`)},
		{Label: "iPhone", Pattern: regexp.MustCompile(`(?i)iphone`)},
	}
}

// UAClassifier classifies user agents using ordered rule tables.
// It holds no mutable state and is safe for concurrent use.
type UAClassifier struct {
	browsers []BrowserRule
	devices  []Rule
	systems  []Rule
}

// NewUAClassifier creates a classifier with the default rule tables.
func NewUAClassifier() *UAClassifier {
	return NewUAClassifierWithRules(DefaultBrowserRules(), DefaultDeviceRules(), DefaultOSRules())
}

// NewUAClassifierWithRules creates a classifier with custom rule tables.
func NewUAClassifierWithRules(browsers []BrowserRule, devices, systems []Rule) *UAClassifier {
	return &UAClassifier{browsers: browsers, devices: devices, systems: systems}
}

// Classify returns browser, OS and device for a user agent string.
// An empty user agent resolves every field to its unknown value.
func (c *UAClassifier) Classify(ua string) UAInfo {
	if strings.TrimSpace(ua) == "" {
		return UAInfo{
			BrowserName:    UnknownBrowser,
			BrowserVersion: UnknownVersion,
			OS:             UnknownOS,
			Device:         UnknownDevice,
		}
	}

	name, version := c.browser(ua)
	return UAInfo{
		BrowserName:    name,
		BrowserVersion: version,
		OS:             firstLabel(c.systems, ua, UnknownOS),
		Device:         firstLabel(c.devices, ua, DeviceDesktop),
	}
}

func (c *UAClassifier) browser(ua string) (string, string) {
	for _, rule := range c.browsers {
		m := rule.Pattern.FindStringSubmatch(ua)
		if m == nil {
			continue
		}
		if rule.Exclude != nil && rule.Exclude.MatchString(ua) {
			continue
		}
		version := UnknownVersion
		if len(m) > 1 && m[1] != "" {
			version = m[1]
		}
		return rule.Name, version
	}
	return UnknownBrowser, UnknownVersion
}

func firstLabel(rules []Rule, ua, fallback string) string {
	for _, rule := range rules {
		if rule.Pattern.MatchString(ua) {
			return rule.Label
		}
	}
	return fallback
}
