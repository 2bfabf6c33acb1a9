// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package classify

import (
	"strings"

	"github.com/mileusna/useragent"
)

// Classification labels a visit as human or automated.
type Classification string

// Visitor classifications.
const (
	Human Classification = "HUMAN"
	Bot   Classification = "BOT"
)

// ClassificationOf converts a bot verdict into a Classification.
func ClassificationOf(isBot bool) Classification {
	if isBot {
		return Bot
	}
	return Human
}

// Level controls which signals the bot classifier consults.
type Level string

// Detection levels.
//   - Lenient: user agent categories only.
//   - Normal: user agent categories or hosting organization.
//   - Strict: Normal plus the bot flag of a full user agent parser.
const (
	LevelLenient Level = "lenient"
	LevelNormal  Level = "normal"
	LevelStrict  Level = "strict"
)

// Category groups related user agent substrings.
type Category struct {
	Name     string
	Patterns []string
}

// DefaultCategories returns the curated user agent signature table.
// Patterns are lower-case substrings.
func DefaultCategories() []Category {
	return []Category{
		{Name: "search_engine", Patterns: []string{
			"googlebot", "bingbot", "slurp", "yandexbot", "duckduckbot",
			"baiduspider", "sogou", "exabot",
		}},
		{Name: "social_preview", Patterns: []string{
			"facebookexternalhit", "facebot", "twitterbot", "linkedinbot",
			"slackbot", "discordbot", "telegrambot",
		}},
		{Name: "crawler", Patterns: []string{
			"bot", "crawl", "crawler", "spider", "archive.org_bot", "ia_archiver",
			"redditbot", "showyoubot", "embedly",
		}},
		{Name: "monitoring", Patterns: []string{
			"uptime", "pingdom", "statuscake", "newrelicpinger", "site24x7", "checkly",
		}},
		{Name: "automation", Patterns: []string{
			"headless", "phantomjs", "selenium", "puppeteer", "playwright", "chrome-lighthouse",
		}},
		{Name: "http_client", Patterns: []string{
			"python-requests", "python-urllib", "go-http-client", "java/", "okhttp", "curl", "wget",
		}},
		{Name: "preview_app", Patterns: []string{
			"whatsapp", "flipboard", "tumblr", "nuzzel", "vkshare", "quora link preview",
		}},
		{Name: "suspicious", Patterns: []string{
			"mozilla/5.0 (compatible;",
		}},
	}
}

// DefaultHostingOrgs returns cloud and hosting provider tokens matched against
// the resolved organization string.
func DefaultHostingOrgs() []string {
	return []string{
		"amazon", "google", "digitalocean", "linode", "microsoft", "facebook",
		"cloudflare", "hetzner", "ovh", "hostinger", "vultr", "contabo",
		"oracle", "gcore", "upcloud", "scaleway",
	}
}

// Verdict explains a bot decision.
type Verdict struct {
	Bot      bool
	Reason   string // "empty_user_agent", "user_agent", "organization", "parser" or ""
	Category string
	Pattern  string
}

// BotClassifier decides HUMAN vs BOT from a user agent and an optional
// organization string. Safe for concurrent use.
type BotClassifier struct {
	categories []Category
	orgs       []string
	level      Level
}

// NewBotClassifier creates a classifier with the default tables.
func NewBotClassifier(level Level) *BotClassifier {
	return NewBotClassifierWithRules(DefaultCategories(), DefaultHostingOrgs(), level)
}

// NewBotClassifierWithRules creates a classifier with custom tables.
// Patterns and org tokens are lower-cased on construction.
func NewBotClassifierWithRules(categories []Category, orgs []string, level Level) *BotClassifier {
	cats := make([]Category, len(categories))
	for i, c := range categories {
		patterns := make([]string, 0, len(c.Patterns))
		for _, p := range c.Patterns {
			if p = strings.ToLower(p); p != "" {
				patterns = append(patterns, p)
			}
		}
		cats[i] = Category{Name: c.Name, Patterns: patterns}
	}
	lowered := make([]string, 0, len(orgs))
	for _, o := range orgs {
		if o = strings.ToLower(o); o != "" {
			lowered = append(lowered, o)
		}
	}
	if level == "" {
		level = LevelNormal
	}
	return &BotClassifier{categories: cats, orgs: lowered, level: level}
}

// IsBot reports whether the request should be classified as BOT.
func (b *BotClassifier) IsBot(ua, org string) bool {
	return b.Match(ua, org).Bot
}

// Classify returns the Classification for a user agent and organization.
func (b *BotClassifier) Classify(ua, org string) Classification {
	return ClassificationOf(b.IsBot(ua, org))
}

// Match evaluates all signals and reports the first one that fired.
func (b *BotClassifier) Match(ua, org string) Verdict {
	if strings.TrimSpace(ua) == "" {
		return Verdict{Bot: true, Reason: "empty_user_agent"}
	}

	agent := strings.ToLower(ua)
	for _, c := range b.categories {
		for _, p := range c.Patterns {
			if strings.Contains(agent, p) {
				return Verdict{Bot: true, Reason: "user_agent", Category: c.Name, Pattern: p}
			}
		}
	}

	if b.level != LevelLenient && org != "" {
		o := strings.ToLower(org)
		for _, token := range b.orgs {
			if strings.Contains(o, token) {
				return Verdict{Bot: true, Reason: "organization", Pattern: token}
			}
		}
	}

	if b.level == LevelStrict && useragent.Parse(ua).Bot {
		return Verdict{Bot: true, Reason: "parser"}
	}

	return Verdict{}
}
