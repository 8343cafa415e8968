package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/openbinder/internal/auth"
	"github.com/MrSnakeDoc/openbinder/internal/backup"
	"github.com/MrSnakeDoc/openbinder/internal/bridge"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/mw"
	"github.com/MrSnakeDoc/openbinder/internal/library"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
	"github.com/MrSnakeDoc/openbinder/internal/offline"
	"github.com/MrSnakeDoc/openbinder/internal/share"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
	"github.com/MrSnakeDoc/openbinder/internal/view"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	AllowedHosts   []string      // Host headers allowed to access the admin endpoints
	AllowedCIDRS   []string      // IPs allowed to access healthz/readyz/reload/sw control
	TrustProxy     bool          // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RequestTimeout time.Duration // per-request deadline, streaming routes excluded

	RedisClient *redis.Client     // Redis client connection (readiness)
	Store       *redisstore.Store // per-user document store

	Auth          *auth.Manager    // sessions and sign-in flow
	Hub           *auth.Hub        // auth-state fan-out
	Sessions      *mw.SessionCache // resolved-token cache, evicted on sign-out
	SessionCookie string           // cookie carrying the session token
	SecureCookies bool             // Secure flag on cookies

	View    *view.Controller
	Library *library.Service
	Backup  *backup.Service
	Share   *share.Service

	Bridge       *bridge.Relay
	BridgeOrigin string // origin prefix allowed by CORS and the bridge

	Worker        *offline.Worker
	ReloadTrigger chan struct{} // Channel to trigger a manual asset manifest reload

	RateLimitBurst  int
	RateLimitPerMin int
}

// Now returns TimeNow() or time.Now().
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
