package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline for API routes

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	PublicURL string // external base URL, used to build the OIDC callback (ex: https://binder.domain.ext)

	// Identity provider
	OIDCIssuer            string        // ex: https://accounts.google.com
	OIDCClientID          string        // OAuth client id
	OIDCClientSecret      string        // OAuth client secret (optional for public clients)
	OIDCScopes            []string      // extra scopes besides openid
	OIDCDiscoveryRetries  int           // provider discovery attempts at startup
	OIDCDiscoveryInterval time.Duration // wait between discovery attempts

	// Sessions
	SessionTTL    time.Duration // lifetime of a signed-in session
	SessionCookie string        // cookie name carrying the session token
	SecureCookies bool          // mark cookies Secure (disable for plain http dev)

	// Offline worker
	AssetOrigin         string        // upstream serving the static shell (ex: http://web:80)
	AssetManifest       string        // path to assets.yaml
	AssetReloadInterval time.Duration // how often assets.yaml is re-read
	BypassHosts         []string      // database/identity hosts never served from cache
	CacheGCInterval     time.Duration // how often retired caches are collected
	CacheTTL            time.Duration // lifetime of runtime-cached responses

	// Share capture
	ScrapeTimeout      time.Duration // metadata fetch timeout
	ScrapeMaxBytes     int64         // body cap when scraping a page
	ScrapeAllowPrivate bool          // allow scraping loopback/private addresses (dev only)

	// Extension bridge
	BridgeOriginPrefix string // only origins with this prefix may talk to the bridge

	// Rate limiting (auth + share endpoints)
	RateLimitBurst  int
	RateLimitPerMin int

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict healthz/readyz/reload/sw control to specific IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

// Load reads the configuration from the environment. A .env file (OB_ENV_FILE,
// default ".env") is loaded first when present; real env vars take precedence.
func Load() *Config {
	loadDotenv(getenv("OB_ENV_FILE", ".env"))

	issuer := requireEnv("OB_OIDC_ISSUER")
	redisAddr := requireEnv("OB_REDIS_ADDR")

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("OB_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("OB_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("OB_REQUEST_TIMEOUT", 15*time.Second),

		// Logging
		LogLevel:  getenv("OB_LOG_LEVEL", "info"),
		PrettyLog: mustBool("OB_PRETTY_LOG", true),

		PublicURL: strings.TrimRight(requireEnv("OB_PUBLIC_URL"), "/"),

		// Identity
		OIDCIssuer:            issuer,
		OIDCClientID:          requireEnv("OB_OIDC_CLIENT_ID"),
		OIDCClientSecret:      getenv("OB_OIDC_CLIENT_SECRET", ""),
		OIDCScopes:            splitAndTrim(getenv("OB_OIDC_SCOPES", "email,profile")),
		OIDCDiscoveryRetries:  getenvInt("OB_OIDC_DISCOVERY_RETRIES", 5),
		OIDCDiscoveryInterval: mustDuration("OB_OIDC_DISCOVERY_INTERVAL", 2*time.Second),

		// Sessions
		SessionTTL:    mustDuration("OB_SESSION_TTL", 30*24*time.Hour),
		SessionCookie: getenv("OB_SESSION_COOKIE", "ob_session"),
		SecureCookies: mustBool("OB_SECURE_COOKIES", true),

		// Offline worker
		AssetOrigin:         requireEnv("OB_ASSET_ORIGIN"),
		AssetManifest:       getenv("OB_ASSET_MANIFEST", "/app/assets.yaml"),
		AssetReloadInterval: mustDuration("OB_ASSET_RELOAD_INTERVAL", time.Hour),
		BypassHosts:         bypassHosts(issuer, redisAddr, splitAndTrim(getenv("OB_BYPASS_HOSTS", ""))),
		CacheGCInterval:     mustDuration("OB_CACHE_GC_INTERVAL", 6*time.Hour),
		CacheTTL:            mustDuration("OB_CACHE_TTL", 7*24*time.Hour),

		// Share capture
		ScrapeTimeout:      mustDuration("OB_SCRAPE_TIMEOUT", 5*time.Second),
		ScrapeMaxBytes:     int64(getenvInt("OB_SCRAPE_MAX_BYTES", 1<<20)),
		ScrapeAllowPrivate: mustBool("OB_SCRAPE_ALLOW_PRIVATE", false),

		BridgeOriginPrefix: getenv("OB_BRIDGE_ORIGIN_PREFIX", "chrome-extension://"),

		RateLimitBurst:  getenvInt("OB_RATE_LIMIT_BURST", 20),
		RateLimitPerMin: getenvInt("OB_RATE_LIMIT_PER_MIN", 60),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("OB_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("OB_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("OB_TRUST_PROXY", true),
	}

	cfg.loadRedis(redisAddr)

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// LoadAdmin reads only what the admin CLI needs: logging and Redis.
func LoadAdmin() *Config {
	loadDotenv(getenv("OB_ENV_FILE", ".env"))

	cfg := &Config{
		LogLevel:  getenv("OB_LOG_LEVEL", "warn"),
		PrettyLog: mustBool("OB_PRETTY_LOG", true),
	}
	cfg.loadRedis(requireEnv("OB_REDIS_ADDR"))
	return cfg
}

func (c *Config) loadRedis(addr string) {
	c.RedisAddr = addr
	c.RedisUser = getenv("OB_REDIS_USERNAME", "default")
	c.RedisPasswordRequired = mustBool("OB_REDIS_PASSWORD_REQUIRED", true)
	c.RedisPassword = getenv("OB_REDIS_PASSWORD", "")
	c.RedisDB = requireEnvInt("OB_REDIS_DB")
	c.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	c.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
	c.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
	c.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
	c.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
	c.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
	c.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
	c.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
	c.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)

	// Validate Redis password configuration
	if c.RedisPasswordRequired && c.RedisPassword == "" {
		panic("❌ FATAL: OB_REDIS_PASSWORD is required when OB_REDIS_PASSWORD_REQUIRED=true")
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	if cp.OIDCClientSecret != "" {
		cp.OIDCClientSecret = "***REDACTED***"
	}
	return cp
}

// CallbackURL is the redirect URI registered at the identity provider.
func (c *Config) CallbackURL() string {
	return c.PublicURL + "/auth/callback"
}

func loadDotenv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("⚠️ failed to load %s: %v", path, err)
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// bypassHosts collects the hosts the offline worker must never cache:
// the identity issuer, the database address, and any extra configured hosts.
//
//	"https://accounts.google.com", "redis:6379" -> ["accounts.google.com", "redis"]
func bypassHosts(issuer, redisAddr string, extra []string) []string {
	seen := make(map[string]bool)
	hosts := make([]string, 0, len(extra)+2)
	add := func(h string) {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" || seen[h] {
			return
		}
		seen[h] = true
		hosts = append(hosts, h)
	}

	if u, err := url.Parse(issuer); err == nil {
		add(u.Hostname())
	}
	host := redisAddr
	if i := strings.LastIndex(host, ":"); i != -1 {
		host = host[:i]
	}
	add(host)
	for _, h := range extra {
		add(h)
	}
	return hosts
}
