package mw

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
)

// Authenticator resolves a session token or bearer ID token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

type tokenKey struct{}

// TokenFromContext returns the credential the request was authenticated with.
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

// RequestToken extracts the credential from the Authorization header or the
// session cookie, in that order.
func RequestToken(r *http.Request, cookie string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	if c, err := r.Cookie(cookie); err == nil {
		return c.Value
	}
	return ""
}

// SessionCache memoizes resolved tokens for a short time. Entries of a user
// are dropped as soon as that user signs out on any instance.
type SessionCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cachedSession
}

type cachedSession struct {
	user    *domain.User
	expires time.Time
}

func NewSessionCache(ttl time.Duration) *SessionCache {
	return &SessionCache{ttl: ttl, now: time.Now, entries: make(map[string]cachedSession)}
}

func (c *SessionCache) get(token string) (*domain.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[token]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, token)
		return nil, false
	}
	return e.user, true
}

func (c *SessionCache) put(token string, u *domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for t, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, t)
		}
	}
	c.entries[token] = cachedSession{user: u, expires: now.Add(c.ttl)}
}

// Forget drops a single token.
func (c *SessionCache) Forget(token string) {
	c.mu.Lock()
	delete(c.entries, token)
	c.mu.Unlock()
}

// OnAuthState evicts every token of uid on sign-out.
func (c *SessionCache) OnAuthState(uid string, u *domain.User) {
	if u != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for t, e := range c.entries {
		if e.user != nil && e.user.UID == uid {
			delete(c.entries, t)
		}
	}
}

// Session attaches the signed-in user to the request context when the request
// carries a valid credential. Requests without one pass through signed out;
// the data layer rejects them where a user is required.
func Session(authn Authenticator, cookie string, cache *SessionCache, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := RequestToken(r, cookie)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			var (
				user *domain.User
				ok   bool
			)
			if cache != nil {
				user, ok = cache.get(token)
			}
			if !ok {
				u, err := authn.Authenticate(r.Context(), token)
				switch {
				case err == nil:
					user = u
					if cache != nil {
						cache.put(token, u)
					}
				case errors.Is(err, domain.ErrUnauthenticated):
					log.Debug("Session: rejected credential", logger.String("path", r.URL.Path))
				default:
					log.Warn("Session: failed to resolve credential", logger.Error(err))
				}
			}

			if user == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := domain.WithUser(r.Context(), user)
			ctx = context.WithValue(ctx, tokenKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
