// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package enrich resolves geolocation and network organization for visitor
// IP addresses. Lookups are best-effort: every call returns a result value
// whose Status says whether the data can be used, and callers fall back to
// Unknown placeholders otherwise.
package enrich

import (
	"context"
	"errors"
	"net"
)

// Unknown is the placeholder stored for any field that could not be resolved.
const Unknown = "Unknown"

// Status is the outcome of a lookup.
type Status int

// Lookup outcomes.
const (
	StatusOK Status = iota
	StatusTimedOut
	StatusUnavailable
)

// String returns the metric label for the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "unavailable"
	}
}

// Sentinel errors reported inside failed results.
var (
	ErrPrivateAddress = errors.New("enrich: address is private or reserved")
	ErrRateLimited    = errors.New("enrich: rate limit exceeded")
	ErrNoProvider     = errors.New("enrich: no provider configured")
	ErrNoData         = errors.New("enrich: provider returned no data")
)

// Geo holds the location fields of a visit.
type Geo struct {
	Country  string `json:"country"`
	Region   string `json:"region"`
	City     string `json:"city"`
	Timezone string `json:"timezone"`
}

// UnknownGeo returns a Geo with every field set to Unknown.
func UnknownGeo() Geo {
	return Geo{Country: Unknown, Region: Unknown, City: Unknown, Timezone: Unknown}
}

// GeoResult is the result of LookupGeo.
type GeoResult struct {
	Geo    Geo
	Status Status
	Err    error
}

// OrUnknown returns the resolved location, substituting Unknown for any
// missing field, or UnknownGeo when the lookup did not succeed.
func (r GeoResult) OrUnknown() Geo {
	if r.Status != StatusOK {
		return UnknownGeo()
	}
	return Geo{
		Country:  orUnknown(r.Geo.Country),
		Region:   orUnknown(r.Geo.Region),
		City:     orUnknown(r.Geo.City),
		Timezone: orUnknown(r.Geo.Timezone),
	}
}

// OrgResult is the result of LookupOrg.
type OrgResult struct {
	Org    string
	Status Status
	Err    error
}

// OrUnknown returns the organization or Unknown when the lookup failed.
func (r OrgResult) OrUnknown() string {
	if r.Status != StatusOK {
		return Unknown
	}
	return orUnknown(r.Org)
}

// Service resolves enrichment data for an IP address. Implementations must
// bound every call in time and never panic; failures are reported through
// the result status.
type Service interface {
	LookupGeo(ctx context.Context, ip string) GeoResult
	LookupOrg(ctx context.Context, ip string) OrgResult
}

func geoFailure(err error) GeoResult {
	return GeoResult{Status: statusOf(err), Err: err}
}

func orgFailure(err error) OrgResult {
	return OrgResult{Status: statusOf(err), Err: err}
}

// statusOf maps an error to TimedOut or Unavailable.
func statusOf(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimedOut
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return StatusTimedOut
	}
	return StatusUnavailable
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
