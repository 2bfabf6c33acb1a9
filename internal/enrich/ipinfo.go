// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/olegiv/qlyx-go/internal/util"
)

// Default ipinfo client settings.
const (
	DefaultIPInfoURL     = "https://ipinfo.io"
	DefaultTimeout       = 3 * time.Second
	DefaultCacheSize     = 10000
	DefaultCacheTTL      = time.Hour
	maxResponseBytes     = 64 << 10
	breakerTripFailures  = 5
	breakerOpenTimeout   = time.Minute
	breakerHalfOpenProbe = 1
)

// IPInfoOptions configures the ipinfo.io client.
type IPInfoOptions struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RateLimit  float64 // Requests per second, 0 disables limiting
	CacheSize  int
	CacheTTL   time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ipinfoRecord is the subset of the /{ip}/json response that is used.
type ipinfoRecord struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Org      string `json:"org"`
	Timezone string `json:"timezone"`
	Bogon    bool   `json:"bogon"`
}

// IPInfo resolves geo and organization data from ipinfo.io. One request per
// IP serves both lookups; successful records are cached for CacheTTL.
type IPInfo struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[ipinfoRecord]
	cache   *expirable.LRU[string, ipinfoRecord]
	logger  *slog.Logger
}

// NewIPInfo creates an ipinfo.io client.
func NewIPInfo(opts IPInfoOptions) *IPInfo {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultIPInfoURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	}

	c := &IPInfo{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		timeout: opts.Timeout,
		client:  opts.HTTPClient,
		limiter: limiter,
		cache:   expirable.NewLRU[string, ipinfoRecord](opts.CacheSize, nil, opts.CacheTTL),
		logger:  opts.Logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[ipinfoRecord](gobreaker.Settings{
		Name:        "ipinfo",
		MaxRequests: breakerHalfOpenProbe,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripFailures
		},
		// A bogon answer is a valid response from a healthy upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPrivateAddress)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("enrichment circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return c
}

// LookupGeo implements Service.
func (c *IPInfo) LookupGeo(ctx context.Context, ip string) GeoResult {
	rec, err := c.record(ctx, ip)
	if err != nil {
		return geoFailure(err)
	}
	if rec.Country == "" {
		return geoFailure(ErrNoData)
	}
	return GeoResult{
		Geo: Geo{
			Country:  rec.Country,
			Region:   rec.Region,
			City:     rec.City,
			Timezone: rec.Timezone,
		},
		Status: StatusOK,
	}
}

// LookupOrg implements Service.
func (c *IPInfo) LookupOrg(ctx context.Context, ip string) OrgResult {
	rec, err := c.record(ctx, ip)
	if err != nil {
		return orgFailure(err)
	}
	if rec.Org == "" {
		return orgFailure(ErrNoData)
	}
	return OrgResult{Org: rec.Org, Status: StatusOK}
}

// record returns the cached record for ip or fetches it.
func (c *IPInfo) record(ctx context.Context, ip string) (ipinfoRecord, error) {
	if util.IsPrivateAddr(ip) {
		return ipinfoRecord{}, ErrPrivateAddress
	}
	if rec, ok := c.cache.Get(ip); ok {
		return rec, nil
	}
	if !c.limiter.Allow() {
		return ipinfoRecord{}, ErrRateLimited
	}

	rec, err := c.breaker.Execute(func() (ipinfoRecord, error) {
		return c.fetch(ctx, ip)
	})
	if err != nil {
		return ipinfoRecord{}, err
	}
	c.cache.Add(ip, rec)
	return rec, nil
}

func (c *IPInfo) fetch(ctx context.Context, ip string) (ipinfoRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(ip))
	if c.token != "" {
		endpoint += "?token=" + url.QueryEscape(c.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ipinfoRecord{}, fmt.Errorf("building ipinfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ipinfoRecord{}, fmt.Errorf("ipinfo request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return ipinfoRecord{}, fmt.Errorf("ipinfo returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ipinfoRecord{}, fmt.Errorf("reading ipinfo response: %w", err)
	}

	var rec ipinfoRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return ipinfoRecord{}, fmt.Errorf("decoding ipinfo response: %w", err)
	}
	if rec.Bogon {
		return ipinfoRecord{}, ErrPrivateAddress
	}
	return rec, nil
}

// isRejected reports whether err came from the breaker rather than from ipinfo.
func isRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
