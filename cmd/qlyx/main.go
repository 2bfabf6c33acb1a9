// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/qlyx-go/internal/cache"
	"github.com/olegiv/qlyx-go/internal/classify"
	"github.com/olegiv/qlyx-go/internal/config"
	"github.com/olegiv/qlyx-go/internal/enrich"
	"github.com/olegiv/qlyx-go/internal/geoip"
	"github.com/olegiv/qlyx-go/internal/handler"
	"github.com/olegiv/qlyx-go/internal/identity"
	"github.com/olegiv/qlyx-go/internal/logging"
	"github.com/olegiv/qlyx-go/internal/metrics"
	"github.com/olegiv/qlyx-go/internal/middleware"
	"github.com/olegiv/qlyx-go/internal/scheduler"
	"github.com/olegiv/qlyx-go/internal/stats"
	"github.com/olegiv/qlyx-go/internal/store"
	"github.com/olegiv/qlyx-go/internal/tracker"
	"github.com/olegiv/qlyx-go/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "QLYX - visitor tracking and statistics\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QLYX_DB_DRIVER         sqlite|sqlite3|mysql (default: sqlite)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QLYX_DB_DSN            Database DSN (default: ./data/qlyx.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QLYX_SERVER_PORT       Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QLYX_UPSTREAM_URL      Site to reverse-proxy and track (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QLYX_SITE_DIR          Static site directory to serve and track (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QLYX_CACHE_BACKEND     memory|redis (default: memory)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QLYX_REDIS_URL         Redis URL for the shared statistics cache\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QLYX_GEOIP_DB_PATH     GeoLite2-City.mmdb path (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QLYX_STORE_TIMEOUT_MS  Deadline per database call (default: 2000)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QLYX_ADMIN_TOKEN       Bearer token for POST /api/cache/clear (unset disables it)\n")
	}

	flag.Parse()

	info := version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info version.Info) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:     cfg.LogLevel,
		File:      cfg.LogFile,
		FileLevel: "debug",
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logCloser.Close() }()
	slog.SetDefault(logger)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}()

	visits, err := store.New(db, cfg.DBDriver)
	if err != nil {
		return fmt.Errorf("creating visit store: %w", err)
	}

	m := metrics.New()
	sched := scheduler.New(logger)

	geo := geoip.NewLookup()
	if cfg.GeoIPEnabled() {
		if err := geo.Init(cfg.GeoIPDBPath); err != nil {
			slog.Warn("GeoIP database unavailable, using remote lookups only", "path", cfg.GeoIPDBPath, "error", err)
		} else if cfg.GeoIPReloadSchedule != "" {
			err := sched.AddJob("geoip_reload", cfg.GeoIPReloadSchedule, time.Minute, func(context.Context) error {
				return geo.Reload()
			})
			if err != nil {
				return fmt.Errorf("scheduling GeoIP reload: %w", err)
			}
		}
	}
	defer func() { _ = geo.Close() }()

	var local enrich.LocalGeo
	if geo.IsEnabled() {
		local = geo
	}
	remote := enrich.NewIPInfo(enrich.IPInfoOptions{
		BaseURL:   cfg.IPInfoBaseURL,
		Token:     cfg.IPInfoToken,
		Timeout:   cfg.EnrichmentTimeout(),
		RateLimit: cfg.IPInfoRateLimit,
		CacheSize: cfg.EnrichmentCacheSize,
		CacheTTL:  cfg.EnrichmentCacheLifetime(),
		Logger:    logger,
	})
	enricher := enrich.NewChain(local, remote, m, logger)

	cacheType := cache.TypeMemory
	if cfg.UseRedisCache() {
		cacheType = cache.TypeRedis
	}
	statsCache, err := cache.NewCache(cache.CacheConfig{
		Type:            cacheType,
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      cfg.CacheTTL(),
		CleanupInterval: time.Minute,
	})
	if err != nil {
		return fmt.Errorf("initializing statistics cache: %w", err)
	}
	defer func() { _ = statsCache.Close() }()
	slog.Info("statistics cache ready", "backend", cacheType, "ttl", cfg.CacheTTL())

	engine := stats.New(stats.Options{
		Store:        visits,
		Cache:        statsCache,
		TTL:          cfg.CacheTTL(),
		StoreTimeout: cfg.StoreTimeout(),
		MaxRecent:    cfg.MaxRecentVisitors,
		Dimensions:   stats.DimensionsFromFeatures(cfg.Features),
		Metrics:      m,
		Logger:       logger,
	})

	sessions := identity.NewManager(identity.Options{
		SessionTracking: cfg.Features.SessionTracking,
		SessionCookie:   cfg.SessionCookieName,
		SessionTTL:      cfg.SessionTTL(),
		IdentityCookie:  cfg.IdentityCookieName,
		IdentityTTL:     cfg.IdentityTTL(),
		Secure:          cfg.SecureCookies,
	})

	t := tracker.New(tracker.Options{
		Store:        visits,
		Sessions:     sessions,
		Enricher:     enricher,
		UA:           classify.NewUAClassifier(),
		Bots:         classify.NewBotClassifier(classify.Level(cfg.BotDetectionLevel)),
		Features:     cfg.Features,
		IgnoredIPs:   cfg.IgnoredIPs,
		AnonymizeIP:  cfg.AnonymizeIP,
		StoreTimeout: cfg.StoreTimeout(),
		Metrics:      m,
		Logger:       logger,
	})

	site, err := siteHandler(cfg)
	if err != nil {
		return err
	}

	var cachePinger handler.Pinger
	if p, ok := statsCache.(handler.Pinger); ok {
		cachePinger = p
	}
	if cfg.AdminToken == "" {
		slog.Info("QLYX_ADMIN_TOKEN not set, cache clearing is disabled")
	}

	routerCfg := handler.RouterConfig{
		Stats:     handler.NewStatsHandler(engine, logger),
		Health:    handler.NewHealthHandler(visits, cachePinger, info.Short()),
		Metrics:   m.Handler(),
		AdminAuth: middleware.AdminTokenAuth(cfg.AdminToken),
		Site:      site,
		Tracking: t.Middleware(tracker.MiddlewareOptions{
			TrustProxyHeaders: cfg.TrustProxyHeaders,
			ExcludePaths:      cfg.ExcludePaths,
		}),
	}
	if cfg.APIRateLimit > 0 {
		routerCfg.RateLimit = middleware.NewRateLimiter(cfg.APIRateLimit, cfg.APIRateBurst, cfg.TrustProxyHeaders).Middleware()
	}
	r := handler.NewRouter(routerCfg)

	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Short())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// openDatabase opens the configured database and applies migrations when
// auto-migration is enabled.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	if cfg.DBDriver != config.DriverMySQL && !strings.HasPrefix(cfg.DBDSN, "file:") && cfg.DBDSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	slog.Info("initializing database", "driver", cfg.DBDriver)
	db, err := store.NewDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	if cfg.AutoMigrate {
		slog.Info("running database migrations")
		if err := store.Migrate(db, cfg.DBDriver); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	slog.Info("database ready")
	return db, nil
}

// siteHandler returns the tracked site: a reverse proxy to the upstream, a
// static file server, or nil when neither is configured.
func siteHandler(cfg *config.Config) (http.Handler, error) {
	switch {
	case cfg.UpstreamURL != "":
		target, err := url.Parse(cfg.UpstreamURL)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("invalid QLYX_UPSTREAM_URL %q", cfg.UpstreamURL)
		}
		slog.Info("tracking upstream site", "upstream", target.String())
		return httputil.NewSingleHostReverseProxy(target), nil
	case cfg.SiteDir != "":
		slog.Info("tracking static site", "dir", cfg.SiteDir)
		return http.FileServer(http.Dir(cfg.SiteDir)), nil
	default:
		slog.Warn("no QLYX_UPSTREAM_URL or QLYX_SITE_DIR set, only the API is served")
		return nil, nil
	}
}
