// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

// Supported option values.
const (
	DriverSQLite    = "sqlite"  // modernc.org/sqlite, pure Go
	DriverSQLiteCGO = "sqlite3" // github.com/mattn/go-sqlite3
	DriverMySQL     = "mysql"

	CacheMemory = "memory"
	CacheRedis  = "redis"

	BotLevelLenient = "lenient"
	BotLevelNormal  = "normal"
	BotLevelStrict  = "strict"
)

// Features holds the per-feature enable flags. Every flag defaults to true.
type Features struct {
	Geolocation        bool `env:"GEOLOCATION" envDefault:"true"`
	OrganizationLookup bool `env:"ORGANIZATION_LOOKUP" envDefault:"true"`
	SessionTracking    bool `env:"SESSION_TRACKING" envDefault:"true"`
	PageTracking       bool `env:"PAGE_TRACKING" envDefault:"true"`
	ReferrerTracking   bool `env:"REFERRER_TRACKING" envDefault:"true"`
	BrowserTracking    bool `env:"BROWSER_TRACKING" envDefault:"true"`
	DeviceTracking     bool `env:"DEVICE_TRACKING" envDefault:"true"`
	OSTracking         bool `env:"OS_TRACKING" envDefault:"true"`
	LanguageTracking   bool `env:"LANGUAGE_TRACKING" envDefault:"true"`
	TimezoneTracking   bool `env:"TIMEZONE_TRACKING" envDefault:"true"`
	UserProfile        bool `env:"USER_PROFILE" envDefault:"true"`
	VisitorType        bool `env:"VISITOR_TYPE" envDefault:"true"`

	// Breakdown dimensions computed by the statistics engine.
	CountryBreakdown  bool `env:"COUNTRY_BREAKDOWN" envDefault:"true"`
	CityBreakdown     bool `env:"CITY_BREAKDOWN" envDefault:"true"`
	RegionBreakdown   bool `env:"REGION_BREAKDOWN" envDefault:"true"`
	OrgBreakdown      bool `env:"ORG_BREAKDOWN" envDefault:"true"`
	BrowserBreakdown  bool `env:"BROWSER_BREAKDOWN" envDefault:"true"`
	DeviceBreakdown   bool `env:"DEVICE_BREAKDOWN" envDefault:"true"`
	OSBreakdown       bool `env:"OS_BREAKDOWN" envDefault:"true"`
	LanguageBreakdown bool `env:"LANGUAGE_BREAKDOWN" envDefault:"true"`
	TimezoneBreakdown bool `env:"TIMEZONE_BREAKDOWN" envDefault:"true"`
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ServerHost string `env:"QLYX_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"QLYX_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"QLYX_ENV" envDefault:"development"`
	LogLevel   string `env:"QLYX_LOG_LEVEL" envDefault:"info"`
	LogFile    string `env:"QLYX_LOG_FILE" envDefault:"qlyx_log.txt"` // Diagnostic log, empty disables

	// Tracked site: either a reverse-proxied upstream or a static directory
	UpstreamURL string `env:"QLYX_UPSTREAM_URL"`
	SiteDir     string `env:"QLYX_SITE_DIR"`

	// JSON API rate limiting (per client IP)
	APIRateLimit float64 `env:"QLYX_API_RATE_LIMIT" envDefault:"10"` // Requests per second
	APIRateBurst int     `env:"QLYX_API_RATE_BURST" envDefault:"20"`
	AdminToken   string  `env:"QLYX_ADMIN_TOKEN"` // Bearer token for POST /api/cache/clear, empty disables it

	// Database configuration
	DBDriver       string `env:"QLYX_DB_DRIVER" envDefault:"sqlite"`
	DBDSN          string `env:"QLYX_DB_DSN" envDefault:"./data/qlyx.db"`
	AutoMigrate    bool   `env:"QLYX_AUTO_MIGRATE" envDefault:"true"`
	StoreTimeoutMS int    `env:"QLYX_STORE_TIMEOUT_MS" envDefault:"2000"` // Per insert, update or statistics query

	// Statistics cache
	CacheDuration     int    `env:"QLYX_CACHE_DURATION" envDefault:"300"` // Seconds
	CacheBackend      string `env:"QLYX_CACHE_BACKEND" envDefault:"memory"`
	RedisURL          string `env:"QLYX_REDIS_URL"`
	CachePrefix       string `env:"QLYX_CACHE_PREFIX" envDefault:"qlyx:"`
	MaxRecentVisitors int    `env:"QLYX_MAX_RECENT_VISITORS" envDefault:"100"`

	// Identity and session
	SessionDuration    int      `env:"QLYX_SESSION_DURATION" envDefault:"1800"`   // Seconds
	IdentityCookieDays int      `env:"QLYX_IDENTITY_COOKIE_DAYS" envDefault:"30"` // Days
	SessionCookieName  string   `env:"QLYX_SESSION_COOKIE" envDefault:"qlyx_session"`
	IdentityCookieName string   `env:"QLYX_IDENTITY_COOKIE" envDefault:"qlyx_user_profile"`
	SecureCookies      bool     `env:"QLYX_SECURE_COOKIES" envDefault:"false"`
	AnonymizeIP        bool     `env:"QLYX_ANONYMIZE_IP" envDefault:"false"`
	TrustProxyHeaders  bool     `env:"QLYX_TRUST_PROXY_HEADERS" envDefault:"true"`
	BotDetectionLevel  string   `env:"QLYX_BOT_DETECTION_LEVEL" envDefault:"normal"`
	IgnoredIPs         []string `env:"QLYX_IGNORED_IPS" envSeparator:","`
	ExcludePaths       []string `env:"QLYX_EXCLUDE_PATHS" envSeparator:","`

	// Enrichment
	EnrichmentTimeoutMS int     `env:"QLYX_ENRICHMENT_TIMEOUT_MS" envDefault:"3000"`
	IPInfoBaseURL       string  `env:"QLYX_IPINFO_URL" envDefault:"https://ipinfo.io"`
	IPInfoToken         string  `env:"QLYX_IPINFO_TOKEN"`
	IPInfoRateLimit     float64 `env:"QLYX_IPINFO_RATE_LIMIT" envDefault:"10"` // Requests per second
	GeoIPDBPath         string  `env:"QLYX_GEOIP_DB_PATH"`                     // Path to GeoLite2-City.mmdb
	GeoIPReloadSchedule string  `env:"QLYX_GEOIP_RELOAD" envDefault:"@weekly"` // Cron schedule, empty disables
	EnrichmentCacheSize int     `env:"QLYX_ENRICHMENT_CACHE_SIZE" envDefault:"10000"`
	EnrichmentCacheTTL  int     `env:"QLYX_ENRICHMENT_CACHE_TTL" envDefault:"3600"` // Seconds

	Features Features `envPrefix:"QLYX_ENABLE_"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if the statistics cache should live in Redis.
func (c Config) UseRedisCache() bool {
	return c.CacheBackend == CacheRedis && c.RedisURL != ""
}

// GeoIPEnabled returns true if a local GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// CacheTTL returns the statistics cache lifetime.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheDuration) * time.Second
}

// SessionTTL returns the session cookie lifetime.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionDuration) * time.Second
}

// IdentityTTL returns the identity cookie lifetime.
func (c Config) IdentityTTL() time.Duration {
	return time.Duration(c.IdentityCookieDays) * 24 * time.Hour
}

// StoreTimeout returns the per-call deadline for persistence calls.
func (c Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

// EnrichmentTimeout returns the per-lookup deadline for enrichment calls.
func (c Config) EnrichmentTimeout() time.Duration {
	return time.Duration(c.EnrichmentTimeoutMS) * time.Millisecond
}

// EnrichmentCacheLifetime returns how long enrichment results are reused.
func (c Config) EnrichmentCacheLifetime() time.Duration {
	return time.Duration(c.EnrichmentCacheTTL) * time.Second
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option ranges and enumerations.
func (c *Config) Validate() error {
	if !slices.Contains([]string{DriverSQLite, DriverSQLiteCGO, DriverMySQL}, c.DBDriver) {
		return fmt.Errorf("QLYX_DB_DRIVER must be one of sqlite, sqlite3, mysql; got %q", c.DBDriver)
	}
	if !slices.Contains([]string{CacheMemory, CacheRedis}, c.CacheBackend) {
		return fmt.Errorf("QLYX_CACHE_BACKEND must be memory or redis; got %q", c.CacheBackend)
	}
	if c.CacheBackend == CacheRedis && c.RedisURL == "" {
		return fmt.Errorf("QLYX_REDIS_URL is required when QLYX_CACHE_BACKEND=redis")
	}
	if !slices.Contains([]string{BotLevelLenient, BotLevelNormal, BotLevelStrict}, c.BotDetectionLevel) {
		return fmt.Errorf("QLYX_BOT_DETECTION_LEVEL must be lenient, normal or strict; got %q", c.BotDetectionLevel)
	}
	if c.CacheDuration < 0 {
		return fmt.Errorf("QLYX_CACHE_DURATION must not be negative, got %d", c.CacheDuration)
	}
	if c.SessionDuration <= 0 {
		return fmt.Errorf("QLYX_SESSION_DURATION must be positive, got %d", c.SessionDuration)
	}
	if c.MaxRecentVisitors < 0 {
		return fmt.Errorf("QLYX_MAX_RECENT_VISITORS must not be negative, got %d", c.MaxRecentVisitors)
	}
	if c.APIRateLimit < 0 || c.APIRateBurst < 0 {
		return fmt.Errorf("QLYX_API_RATE_LIMIT and QLYX_API_RATE_BURST must not be negative")
	}
	if c.StoreTimeoutMS <= 0 {
		return fmt.Errorf("QLYX_STORE_TIMEOUT_MS must be positive, got %d", c.StoreTimeoutMS)
	}
	if c.EnrichmentTimeoutMS <= 0 {
		return fmt.Errorf("QLYX_ENRICHMENT_TIMEOUT_MS must be positive, got %d", c.EnrichmentTimeoutMS)
	}
	return nil
}
