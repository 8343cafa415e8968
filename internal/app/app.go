package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/openbinder/internal/auth"
	"github.com/MrSnakeDoc/openbinder/internal/backup"
	"github.com/MrSnakeDoc/openbinder/internal/bridge"
	"github.com/MrSnakeDoc/openbinder/internal/config"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/mw"
	"github.com/MrSnakeDoc/openbinder/internal/library"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
	"github.com/MrSnakeDoc/openbinder/internal/offline"
	"github.com/MrSnakeDoc/openbinder/internal/redis"
	"github.com/MrSnakeDoc/openbinder/internal/scheduler"
	"github.com/MrSnakeDoc/openbinder/internal/share"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
	"github.com/MrSnakeDoc/openbinder/internal/version"
	"github.com/MrSnakeDoc/openbinder/internal/view"
)

// sessionCacheTTL bounds how long a resolved token is trusted without Redis.
const sessionCacheTTL = 30 * time.Second

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	hub         *auth.Hub
	relay       *bridge.Relay
	sessions    *mw.SessionCache
	reloader    *scheduler.AssetReloader
	collector   *scheduler.CacheCollector
}

// Connect opens the Redis client the way the server does. The admin CLI
// reuses it.
func Connect(cfg *config.Config, loggerClient logger.Logger) (*goredis.Client, error) {
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	return redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	redisClient, err := Connect(cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	store := redisstore.NewStore(redisClient)

	// Identity provider discovery retries like the Redis connector
	identity, err := auth.NewOIDCIdentity(context.Background(), auth.OIDCOptions{
		Issuer:       cfg.OIDCIssuer,
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.CallbackURL(),
		Scopes:       cfg.OIDCScopes,
		Retries:      cfg.OIDCDiscoveryRetries,
		Interval:     cfg.OIDCDiscoveryInterval,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to reach identity provider: %v", err)
		os.Exit(1)
	}

	manager := auth.NewManager(identity, store, cfg.SessionTTL, loggerClient)
	hub := auth.NewHub(store, loggerClient)
	sessions := mw.NewSessionCache(sessionCacheTTL)
	relay := bridge.NewRelay(bridge.NewRegistry(), manager, cfg.BridgeOriginPrefix, loggerClient)

	worker, err := offline.NewWorker(store, offline.Options{
		Origin:      cfg.AssetOrigin,
		BypassHosts: cfg.BypassHosts,
		Timeout:     cfg.RequestTimeout,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Invalid asset origin: %v", err)
		os.Exit(1)
	}

	// Create manual reload trigger channel
	reloadTrigger := make(chan struct{}, 1)

	reloader := scheduler.NewAssetReloader(
		cfg.AssetManifest,
		worker,
		loggerClient,
		cfg.AssetReloadInterval,
		reloadTrigger,
	)

	collector := scheduler.NewCacheCollector(
		worker,
		loggerClient,
		cfg.CacheGCInterval,
		cfg.CacheTTL,
	)

	scraper := share.NewScraper(cfg.ScrapeTimeout, cfg.ScrapeMaxBytes, cfg.ScrapeAllowPrivate)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		RequestTimeout:  cfg.RequestTimeout,
		RedisClient:     redisClient,
		Store:           store,
		Auth:            manager,
		Hub:             hub,
		Sessions:        sessions,
		SessionCookie:   cfg.SessionCookie,
		SecureCookies:   cfg.SecureCookies,
		View:            view.NewController(store, loggerClient),
		Library:         library.New(store, loggerClient),
		Backup:          backup.New(store, loggerClient),
		Share:           share.NewService(store, scraper, loggerClient),
		Bridge:          relay,
		BridgeOrigin:    cfg.BridgeOriginPrefix,
		Worker:          worker,
		ReloadTrigger:   reloadTrigger,
		RateLimitBurst:  cfg.RateLimitBurst,
		RateLimitPerMin: cfg.RateLimitPerMin,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		hub:         hub,
		relay:       relay,
		sessions:    sessions,
		reloader:    reloader,
		collector:   collector,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting OpenBinder %s on %s", version.String(), a.cfg.ListenPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Auth-state fan-out: session cache eviction and bridge broadcasts
	unsubscribe := a.hub.OnAuthStateChange(func(ev redisstore.AuthEvent) {
		a.sessions.OnAuthState(ev.UID, ev.User)
	})
	defer unsubscribe()
	go a.relay.Run(ctx, a.hub)
	go func() {
		if err := a.hub.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("auth-state hub stopped", logger.Error(err))
		}
	}()

	// Install the current asset version and start periodic refresh
	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start asset reloader: %w", err)
	}
	a.logger.Info("asset reloader started",
		logger.Duration("interval", a.cfg.AssetReloadInterval))

	if err := a.collector.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cache collector: %w", err)
	}
	a.logger.Info("cache collector started",
		logger.Duration("interval", a.cfg.CacheGCInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.reloader.Stop()
	a.collector.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ OpenBinder stopped cleanly")
	return nil
}
