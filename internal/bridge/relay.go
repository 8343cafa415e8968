package bridge

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/openbinder/internal/auth"
	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
)

// Sessions is the sign-in surface the relay proxies to.
type Sessions interface {
	SignInFor(ctx context.Context, mode, returnTo, conn string) (*auth.SignInStart, error)
	SignInWithIDToken(ctx context.Context, rawIDToken string) (*redisstore.Session, error)
	SignOut(ctx context.Context, token string) error
}

// StateSource notifies auth-state transitions.
type StateSource interface {
	OnAuthStateChange(fn auth.Listener) (unsubscribe func())
}

// Relay answers extension messages and pushes auth-state changes.
type Relay struct {
	reg          *Registry
	sessions     Sessions
	originPrefix string
	log          logger.Logger
}

func NewRelay(reg *Registry, sessions Sessions, originPrefix string, log logger.Logger) *Relay {
	if originPrefix == "" {
		originPrefix = DefaultOriginPrefix
	}
	return &Relay{reg: reg, sessions: sessions, originPrefix: originPrefix, log: log}
}

// Registry exposes the connection registry to the transport.
func (r *Relay) Registry() *Registry {
	return r.reg
}

// Allowed reports whether origin may connect.
func (r *Relay) Allowed(origin string) bool {
	return AllowedOrigin(origin, r.originPrefix)
}

// Connect registers a connection for an allowed origin. The initial user comes
// from the caller's session, if any.
func (r *Relay) Connect(origin string, u *domain.User, token string) (*Conn, bool) {
	if !r.Allowed(origin) {
		return nil, false
	}
	c := r.reg.Add(origin, u, token)
	r.log.Debug("bridge connection opened",
		logger.String("origin", origin),
		logger.String("conn", c.ID))
	return c, true
}

// Disconnect unregisters a connection.
func (r *Relay) Disconnect(c *Conn) {
	r.reg.Remove(c)
	r.log.Debug("bridge connection closed", logger.String("conn", c.ID))
}

// Caller is the session carried by the request that delivered a message.
type Caller struct {
	User  *domain.User
	Token string
}

// Handle processes one message. Messages from other origins, for unknown
// connections or with unknown types are ignored. A caller session rebinds the
// connection before the message is answered.
func (r *Relay) Handle(ctx context.Context, origin, connID string, caller Caller, msg Message) {
	if !r.Allowed(origin) || msg.Type == "" {
		return
	}
	c, ok := r.reg.Get(connID)
	if !ok || c.Origin != origin {
		return
	}
	if caller.User != nil && caller.Token != "" {
		if _, token := c.session(); token != caller.Token {
			c.bind(caller.User, caller.Token)
		}
	}

	switch msg.Type {
	case TypePing:
		r.reg.Send(c, Reply{Type: TypePong})
	case TypeSignIn:
		r.reg.Send(c, r.signIn(ctx, c, msg.IDToken))
	case TypeSignOut:
		r.reg.Send(c, r.signOut(ctx, c))
	case TypeAuthRequest:
		r.reg.Send(c, Reply{Type: TypeAuthState, User: ExtractUser(c.User())})
	}
}

func (r *Relay) signIn(ctx context.Context, c *Conn, idToken string) Reply {
	if idToken == "" {
		start, err := r.sessions.SignInFor(ctx, auth.ModePopup, "/", c.ID)
		if err != nil {
			return Reply{Type: TypeCredential, Error: serializeError(err)}
		}
		return Reply{
			Type:      TypeCredential,
			SignInURL: start.URL,
			Error:     &Error{Code: "auth/id-token-required", Message: "open signInUrl to sign in, or send an idToken"},
		}
	}

	sess, err := r.sessions.SignInWithIDToken(ctx, idToken)
	if err != nil {
		r.log.Warn("bridge sign-in failed", logger.String("origin", c.Origin), logger.Error(err))
		return Reply{Type: TypeCredential, Error: serializeError(err)}
	}
	c.bind(sess.User, sess.Token)
	return Reply{
		Type:       TypeCredential,
		User:       ExtractUser(sess.User),
		Credential: &Credential{ProviderID: "oidc", SessionToken: sess.Token},
	}
}

func (r *Relay) signOut(ctx context.Context, c *Conn) Reply {
	_, token := c.session()
	if err := r.sessions.SignOut(ctx, token); err != nil {
		r.log.Warn("bridge sign-out failed", logger.String("origin", c.Origin), logger.Error(err))
		return Reply{Type: TypeSignedOut, Error: serializeError(err)}
	}
	c.bind(nil, "")
	return Reply{Type: TypeSignedOut}
}

// Run pushes auth-state changes to the connections bound to the affected user
// until ctx is done. A sign-in started by a connection is handed to it first.
func (r *Relay) Run(ctx context.Context, src StateSource) {
	unsubscribe := src.OnAuthStateChange(func(ev redisstore.AuthEvent) {
		uid, u := ev.UID, ev.User
		if ev.Conn != "" && u != nil {
			r.handOver(ev)
		}
		reply := Reply{Type: TypeAuthState, User: ExtractUser(u)}
		n := r.reg.Broadcast(reply, func(c *Conn) bool {
			cur, _ := c.session()
			if cur == nil || cur.UID != uid {
				return false
			}
			if u == nil {
				c.bind(nil, "")
			}
			return true
		})
		if n > 0 {
			r.log.Debug("bridge auth-state broadcast", logger.String("uid", uid), logger.Int("connections", n))
		}
	})
	defer unsubscribe()
	<-ctx.Done()
}

// handOver binds a completed browser sign-in to the connection that asked for
// it. Connections held by another instance are not found here.
func (r *Relay) handOver(ev redisstore.AuthEvent) {
	c, ok := r.reg.Get(ev.Conn)
	if !ok {
		return
	}
	c.bind(ev.User, ev.Token)
	r.reg.Send(c, Reply{
		Type:       TypeCredential,
		User:       ExtractUser(ev.User),
		Credential: &Credential{ProviderID: "oidc", SessionToken: ev.Token},
	})
	r.log.Debug("bridge sign-in handed over", logger.String("conn", c.ID), logger.String("uid", ev.UID))
}

func serializeError(err error) *Error {
	if err == nil {
		return nil
	}
	code := "internal"
	if errors.Is(err, domain.ErrUnauthenticated) {
		code = "auth/invalid-credential"
	}
	return &Error{Code: code, Message: err.Error()}
}
