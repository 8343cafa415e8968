package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
)

// Sign-in modes. Popup is preferred; redirect is the fallback when a popup
// cannot be opened.
const (
	ModePopup    = "popup"
	ModeRedirect = "redirect"
)

// StateTTL bounds how long a started sign-in may take.
const StateTTL = 10 * time.Minute

// SessionStore is the persistence the Manager needs.
type SessionStore interface {
	SaveSession(ctx context.Context, sess *redisstore.Session, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (*redisstore.Session, error)
	DeleteSession(ctx context.Context, token string) (*redisstore.Session, error)
	SaveAuthState(ctx context.Context, state string, st redisstore.AuthState, ttl time.Duration) error
	ConsumeAuthState(ctx context.Context, state string) (*redisstore.AuthState, error)
	PublishAuthEvent(ctx context.Context, ev redisstore.AuthEvent) error
}

// Manager runs sign-in, sign-out and session resolution.
type Manager struct {
	id       Identity
	store    SessionStore
	ttl      time.Duration
	log      logger.Logger
	now      func() time.Time
	newToken func() (string, error)
}

// NewManager builds a Manager. ttl is the session lifetime.
func NewManager(id Identity, store SessionStore, ttl time.Duration, log logger.Logger) *Manager {
	return &Manager{
		id:       id,
		store:    store,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		newToken: randomToken,
	}
}

// SessionTTL is the lifetime given to new sessions.
func (m *Manager) SessionTTL() time.Duration {
	return m.ttl
}

// SignInStart is where the client must go to sign in.
type SignInStart struct {
	Mode string `json:"mode"`
	URL  string `json:"url"`
}

// CallbackResult is a completed sign-in.
type CallbackResult struct {
	Session  *redisstore.Session
	Mode     string
	ReturnTo string
}

// SignIn records a one-time state and returns the provider URL. Any mode other
// than popup is treated as redirect.
func (m *Manager) SignIn(ctx context.Context, mode, returnTo string) (*SignInStart, error) {
	return m.SignInFor(ctx, mode, returnTo, "")
}

// SignInFor is SignIn on behalf of a bridge connection. The session opened by
// the callback is published with conn so the relay can hand it over.
func (m *Manager) SignInFor(ctx context.Context, mode, returnTo, conn string) (*SignInStart, error) {
	if mode != ModePopup {
		mode = ModeRedirect
	}
	state, err := m.newToken()
	if err != nil {
		return nil, err
	}
	st := redisstore.AuthState{Mode: mode, ReturnTo: SafeReturnTo(returnTo), Conn: conn}
	if err := m.store.SaveAuthState(ctx, state, st, StateTTL); err != nil {
		return nil, err
	}
	return &SignInStart{Mode: mode, URL: m.id.AuthCodeURL(state)}, nil
}

// Callback completes a sign-in started by SignIn.
func (m *Manager) Callback(ctx context.Context, state, code string) (*CallbackResult, error) {
	st, err := m.store.ConsumeAuthState(ctx, state)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", domain.ErrUnauthenticated)
	}
	user, _, err := m.id.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	sess, err := m.openSession(ctx, user, st.Conn)
	if err != nil {
		return nil, err
	}
	return &CallbackResult{Session: sess, Mode: st.Mode, ReturnTo: st.ReturnTo}, nil
}

// SignInWithIDToken opens a session from an ID token obtained by another client.
func (m *Manager) SignInWithIDToken(ctx context.Context, rawIDToken string) (*redisstore.Session, error) {
	if rawIDToken == "" {
		return nil, fmt.Errorf("%w: missing id token", domain.ErrUnauthenticated)
	}
	user, err := m.id.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	return m.openSession(ctx, user, "")
}

// SignOut ends a session. Signing out without a session is not an error.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	sess, err := m.store.DeleteSession(ctx, token)
	if err != nil {
		return err
	}
	if sess == nil || sess.User == nil {
		return nil
	}
	m.log.Info("user signed out", logger.String("uid", sess.User.UID))
	m.publish(ctx, redisstore.AuthEvent{UID: sess.User.UID})
	return nil
}

// Authenticate resolves a session token. Tokens that look like a JWT are
// verified as ID tokens when no session matches.
func (m *Manager) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	sess, err := m.store.GetSession(ctx, token)
	if err == nil {
		return sess.User, nil
	}
	if !errors.Is(err, domain.ErrUnauthenticated) {
		return nil, err
	}
	if strings.Count(token, ".") != 2 {
		return nil, domain.ErrUnauthenticated
	}
	return m.id.Verify(ctx, token)
}

func (m *Manager) openSession(ctx context.Context, user *domain.User, conn string) (*redisstore.Session, error) {
	token, err := m.newToken()
	if err != nil {
		return nil, err
	}
	sess := &redisstore.Session{Token: token, User: user, CreatedAt: m.now().UTC()}
	if err := m.store.SaveSession(ctx, sess, m.ttl); err != nil {
		return nil, err
	}
	m.log.Info("user signed in", logger.String("uid", user.UID))
	ev := redisstore.AuthEvent{UID: user.UID, User: user}
	if conn != "" {
		ev.Conn, ev.Token = conn, token
	}
	m.publish(ctx, ev)
	return sess, nil
}

// publish is best effort; a lost event only delays observers until their next read.
func (m *Manager) publish(ctx context.Context, ev redisstore.AuthEvent) {
	if err := m.store.PublishAuthEvent(ctx, ev); err != nil {
		m.log.Warn("failed to publish auth state", logger.String("uid", ev.UID), logger.Error(err))
	}
}

// SafeReturnTo keeps only same-site absolute paths.
func SafeReturnTo(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
