// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package enrich

import (
	"context"
	"errors"
	"log/slog"

	"github.com/olegiv/qlyx-go/internal/geoip"
	"github.com/olegiv/qlyx-go/internal/metrics"
)

// LocalGeo is a synchronous on-disk location database.
type LocalGeo interface {
	LookupLocation(ip string) (geoip.Location, bool)
}

// Chain combines a local GeoIP database with a remote Service. Geo lookups
// try the local database first; organization lookups always go remote.
// Either source may be nil.
type Chain struct {
	local   LocalGeo
	remote  Service
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewChain creates a Chain.
func NewChain(local LocalGeo, remote Service, m *metrics.Metrics, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{local: local, remote: remote, metrics: m, logger: logger}
}

// LookupGeo implements Service.
func (c *Chain) LookupGeo(ctx context.Context, ip string) GeoResult {
	if c.local != nil {
		if loc, ok := c.local.LookupLocation(ip); ok {
			c.metrics.Enrichment("geo", StatusOK.String())
			return GeoResult{
				Geo: Geo{
					Country:  loc.Country,
					Region:   loc.Region,
					City:     loc.City,
					Timezone: loc.Timezone,
				},
				Status: StatusOK,
			}
		}
	}

	res := geoFailure(ErrNoProvider)
	if c.remote != nil {
		res = c.remote.LookupGeo(ctx, ip)
	}
	c.observe("geo", ip, res.Status, res.Err)
	return res
}

// LookupOrg implements Service.
func (c *Chain) LookupOrg(ctx context.Context, ip string) OrgResult {
	res := orgFailure(ErrNoProvider)
	if c.remote != nil {
		res = c.remote.LookupOrg(ctx, ip)
	}
	c.observe("org", ip, res.Status, res.Err)
	return res
}

func (c *Chain) observe(kind, ip string, status Status, err error) {
	c.metrics.Enrichment(kind, status.String())
	switch {
	case status == StatusOK:
	case status == StatusTimedOut:
		c.logger.Warn("enrichment lookup timed out", "kind", kind, "ip", ip, "error", err)
	case errors.Is(err, ErrPrivateAddress), errors.Is(err, ErrNoProvider):
		// Expected for local traffic or when no provider is configured.
	case isRejected(err):
		c.logger.Warn("enrichment provider circuit open, lookup skipped", "kind", kind, "ip", ip, "error", err)
	default:
		c.logger.Debug("enrichment lookup failed", "kind", kind, "ip", ip, "error", err)
	}
}
