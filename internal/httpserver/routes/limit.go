package routes

import (
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/mw"
)

// limited is the per-caller rate limit shared by the sign-in and share routes.
// Each call builds its own buckets.
func limited(d deps.Deps) Middleware {
	return mw.RateLimit(mw.RateLimitConfig{
		Burst:        d.RateLimitBurst,
		RefillPerMin: d.RateLimitPerMin,
		MaxEntries:   10000,
		TrustProxy:   d.TrustProxy,
		Log:          d.Logger,
		Now:          d.TimeNow,
	})
}

// operator restricts a route to the configured CIDRs.
func operator(d deps.Deps) Middleware {
	return mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)
}
