// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tracker records page visits: it classifies the request, resolves
// enrichment and identity, and writes one visit event per tracked request.
package tracker

import (
	"context"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/olegiv/qlyx-go/internal/classify"
	"github.com/olegiv/qlyx-go/internal/config"
	"github.com/olegiv/qlyx-go/internal/enrich"
	"github.com/olegiv/qlyx-go/internal/identity"
	"github.com/olegiv/qlyx-go/internal/metrics"
	"github.com/olegiv/qlyx-go/internal/model"
	"github.com/olegiv/qlyx-go/internal/signal"
)

// Reasons reported when a request is not recorded.
const (
	ReasonIgnoredIP = "ignored_ip"
	ReasonInvalidIP = "invalid_ip"
)

// DefaultStoreTimeout bounds each store call when Options.StoreTimeout is unset.
const DefaultStoreTimeout = 2 * time.Second

// timeNow is the function used to get the current time.
// It can be replaced in tests.
var timeNow = time.Now

// Store is the write side of the visit store.
type Store interface {
	Insert(ctx context.Context, v *model.VisitEvent) (int64, error)
	TouchSession(ctx context.Context, sessionID string, at time.Time) (int64, error)
}

// Options configures a Tracker. Store and Sessions are required.
type Options struct {
	Store        Store
	StoreTimeout time.Duration // Per-call deadline, DefaultStoreTimeout when zero
	Sessions     *identity.Manager
	Enricher     enrich.Service // nil resolves every enrichment field to Unknown
	UA           *classify.UAClassifier
	Bots         *classify.BotClassifier
	Features     config.Features
	IgnoredIPs   []string // Addresses or CIDR prefixes
	AnonymizeIP  bool
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Tracker turns request signals into stored visit events.
type Tracker struct {
	store     Store
	timeout   time.Duration
	sessions  *identity.Manager
	enricher  enrich.Service
	ua        *classify.UAClassifier
	bots      *classify.BotClassifier
	features  config.Features
	ignored   []netip.Prefix
	anonymize bool
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Tracker. Unparseable ignore list entries are logged and skipped.
func New(opts Options) *Tracker {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.UA == nil {
		opts.UA = classify.NewUAClassifier()
	}
	if opts.Bots == nil {
		opts.Bots = classify.NewBotClassifier(classify.LevelNormal)
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}

	t := &Tracker{
		store:     opts.Store,
		timeout:   opts.StoreTimeout,
		sessions:  opts.Sessions,
		enricher:  opts.Enricher,
		ua:        opts.UA,
		bots:      opts.Bots,
		features:  opts.Features,
		anonymize: opts.AnonymizeIP,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	for _, entry := range opts.IgnoredIPs {
		p, err := parseIgnored(entry)
		if err != nil {
			t.logger.Warn("skipping invalid ignored IP entry", "entry", entry, "error", err)
			continue
		}
		t.ignored = append(t.ignored, p)
	}
	return t
}

func parseIgnored(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		p, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (t *Tracker) isIgnored(addr netip.Addr) bool {
	for _, p := range t.ignored {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Track records one visit. Ignored and invalid addresses are logged and
// dropped before any cookie or row is written. Each store call runs under its
// own deadline; failures are logged and never returned.
//
// Every visit is inserted with page_count 1. When the request resumes an
// existing session, the newest row of that session is then advanced, so a
// row's page_count is 1 for a session's first page and 2 for any later page.
// It counts whether a visit was a follow-up page, not the pages seen so far.
func (t *Tracker) Track(ctx context.Context, sig signal.Signals, jar identity.CookieJar) {
	addr, err := netip.ParseAddr(sig.IP)
	if err != nil {
		t.metrics.Ignored(ReasonInvalidIP)
		t.logger.Info("visit not tracked", "reason", ReasonInvalidIP, "ip", sig.IP)
		return
	}
	addr = addr.Unmap()
	if t.isIgnored(addr) {
		t.metrics.Ignored(ReasonIgnoredIP)
		t.logger.Info("visit not tracked", "reason", ReasonIgnoredIP, "ip", addr.String())
		return
	}

	ip := addr.String()
	f := t.features

	geo := enrich.UnknownGeo()
	org := model.Unknown
	if t.enricher != nil {
		if f.Geolocation {
			geo = t.enricher.LookupGeo(ctx, ip).OrUnknown()
		}
		if f.OrganizationLookup {
			org = t.enricher.LookupOrg(ctx, ip).OrUnknown()
		}
	}

	info := t.ua.Classify(sig.UserAgent)

	classification := classify.Human
	if f.VisitorType {
		orgSignal := org
		if orgSignal == model.Unknown {
			orgSignal = ""
		}
		classification = t.bots.Classify(sig.UserAgent, orgSignal)
	}

	storedIP := ip
	if t.anonymize {
		storedIP = identity.AnonymizeIP(ip)
	}
	fingerprint := identity.Fingerprint(storedIP, sig.UserAgent, info.Device, info.OS, info.BrowserName, info.BrowserVersion)

	profile := ""
	if f.UserProfile {
		profile = fingerprint
	}
	sc := t.sessions.Resolve(jar, profile)

	now := timeNow().UTC()
	visit := &model.VisitEvent{
		IP:             storedIP,
		Fingerprint:    fingerprint,
		Organization:   org,
		UserAgent:      sig.UserAgent,
		Device:         gate(f.DeviceTracking, info.Device),
		OS:             gate(f.OSTracking, info.OS),
		BrowserName:    gate(f.BrowserTracking, info.BrowserName),
		BrowserVersion: gate(f.BrowserTracking, info.BrowserVersion),
		Referrer:       model.Unknown,
		Path:           model.Unknown,
		Language:       model.Unknown,
		Country:        geo.Country,
		Region:         geo.Region,
		City:           geo.City,
		Timezone:       gate(f.TimezoneTracking, geo.Timezone),
		Classification: string(classification),
		SessionID:      sc.SessionID,
		PageCount:      1,
		CreatedAt:      now,
		LastActivity:   now,
	}
	if f.ReferrerTracking {
		visit.Referrer = orDefault(sig.Referrer, model.DirectReferrer)
	}
	if f.PageTracking {
		visit.Path = orDefault(sig.Path, model.Unknown)
	}
	if f.LanguageTracking {
		visit.AcceptLanguage = sig.AcceptLanguage
		visit.Language = orDefault(signal.PrimaryLanguage(sig.AcceptLanguage), model.Unknown)
	}

	if err := t.insert(ctx, visit); err != nil {
		t.metrics.StoreError("insert")
		t.logger.Error("failed to insert visit", "error", err, "path", visit.Path)
		return
	}
	t.metrics.Tracked(visit.Classification)
	t.logger.Debug("visit tracked",
		"id", visit.ID,
		"classification", visit.Classification,
		"session", sc.SessionID,
		"path", visit.Path,
	)

	// A resumed session has earlier pages; advance its newest row.
	if sc.Resumed {
		if err := t.touch(ctx, sc.SessionID, now); err != nil {
			t.metrics.StoreError("touch_session")
			t.logger.Error("failed to update session activity", "error", err, "session", sc.SessionID)
		}
	}
}

func (t *Tracker) insert(ctx context.Context, v *model.VisitEvent) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	_, err := t.store.Insert(ctx, v)
	return err
}

func (t *Tracker) touch(ctx context.Context, sessionID string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	_, err := t.store.TouchSession(ctx, sessionID, at)
	return err
}

func gate(enabled bool, v string) string {
	if !enabled {
		return model.Unknown
	}
	return v
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
