package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/openbinder/internal/auth"
	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
)

const extOrigin = "chrome-extension://abcdef"

type fakeSessions struct {
	signedOut []string
	pending   []string
}

func (f *fakeSessions) SignInFor(_ context.Context, _, _, conn string) (*auth.SignInStart, error) {
	f.pending = append(f.pending, conn)
	return &auth.SignInStart{Mode: auth.ModePopup, URL: "https://idp.example/authorize"}, nil
}

func (f *fakeSessions) SignInWithIDToken(_ context.Context, raw string) (*redisstore.Session, error) {
	if raw != "good" {
		return nil, domain.ErrUnauthenticated
	}
	return &redisstore.Session{Token: "sess-1", User: &domain.User{UID: "u1", Email: "ada@example.com"}}, nil
}

func (f *fakeSessions) SignOut(_ context.Context, token string) error {
	if token == "broken" {
		return errors.New("redis down")
	}
	f.signedOut = append(f.signedOut, token)
	return nil
}

type fakeSource struct {
	subscribed chan auth.Listener
}

func (f *fakeSource) OnAuthStateChange(fn auth.Listener) func() {
	f.subscribed <- fn
	return func() {}
}

func newRelay() (*Relay, *fakeSessions) {
	s := &fakeSessions{}
	return NewRelay(NewRegistry(), s, "", logger.Nop()), s
}

func receive(t *testing.T, c *Conn) Reply {
	t.Helper()
	select {
	case r := <-c.Outbox():
		if r.BridgeVersion != BridgeVersion {
			t.Errorf("bridgeVersion = %d", r.BridgeVersion)
		}
		return r
	case <-time.After(time.Second):
		t.Fatal("no reply")
		return Reply{}
	}
}

func expectNothing(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case r := <-c.Outbox():
		t.Fatalf("unexpected reply %+v", r)
	default:
	}
}

func TestAllowedOrigin(t *testing.T) {
	tests := map[string]bool{
		"chrome-extension://abc": true,
		"chrome-extension://":    false,
		"https://evil.example":   false,
		"":                       false,
	}
	for origin, want := range tests {
		if got := AllowedOrigin(origin, ""); got != want {
			t.Errorf("AllowedOrigin(%q) = %v", origin, got)
		}
	}
}

func TestConnectRejectsForeignOrigin(t *testing.T) {
	r, _ := newRelay()
	if _, ok := r.Connect("https://evil.example", nil, ""); ok {
		t.Error("foreign origin accepted")
	}
}

func TestPingAndAuthRequest(t *testing.T) {
	r, _ := newRelay()
	c, _ := r.Connect(extOrigin, nil, "")
	ctx := context.Background()

	r.Handle(ctx, extOrigin, c.ID, Caller{}, Message{Type: TypePing})
	if got := receive(t, c); got.Type != TypePong {
		t.Errorf("reply = %+v", got)
	}

	r.Handle(ctx, extOrigin, c.ID, Caller{}, Message{Type: TypeAuthRequest})
	if got := receive(t, c); got.Type != TypeAuthState || got.User != nil {
		t.Errorf("reply = %+v", got)
	}
}

func TestIgnoredMessages(t *testing.T) {
	r, _ := newRelay()
	c, _ := r.Connect(extOrigin, nil, "")
	ctx := context.Background()

	r.Handle(ctx, "https://evil.example", c.ID, Caller{}, Message{Type: TypePing})
	r.Handle(ctx, "chrome-extension://other", c.ID, Caller{}, Message{Type: TypePing})
	r.Handle(ctx, extOrigin, c.ID, Caller{}, Message{Type: ""})
	r.Handle(ctx, extOrigin, c.ID, Caller{}, Message{Type: "ob:unknown"})
	r.Handle(ctx, extOrigin, "no-such-conn", Caller{}, Message{Type: TypePing})
	expectNothing(t, c)
}

func TestSignInAndOut(t *testing.T) {
	r, s := newRelay()
	c, _ := r.Connect(extOrigin, nil, "")
	ctx := context.Background()

	r.Handle(ctx, extOrigin, c.ID, Caller{}, Message{Type: TypeSignIn})
	got := receive(t, c)
	if got.Type != TypeCredential || got.Error == nil || got.SignInURL == "" {
		t.Errorf("sign-in without token = %+v", got)
	}

	r.Handle(ctx, extOrigin, c.ID, Caller{}, Message{Type: TypeSignIn, IDToken: "bad"})
	got = receive(t, c)
	if got.Error == nil || got.Error.Code != "auth/invalid-credential" {
		t.Errorf("bad token = %+v", got)
	}

	r.Handle(ctx, extOrigin, c.ID, Caller{}, Message{Type: TypeSignIn, IDToken: "good"})
	got = receive(t, c)
	if got.User == nil || got.User.UID != "u1" || *got.User.Email != "ada@example.com" || got.User.DisplayName != nil {
		t.Errorf("credential user = %+v", got.User)
	}
	if got.Credential == nil || got.Credential.SessionToken != "sess-1" {
		t.Errorf("credential = %+v", got.Credential)
	}

	r.Handle(ctx, extOrigin, c.ID, Caller{}, Message{Type: TypeSignOut})
	if got := receive(t, c); got.Type != TypeSignedOut || got.Error != nil {
		t.Errorf("sign-out = %+v", got)
	}
	if len(s.signedOut) != 1 || s.signedOut[0] != "sess-1" || c.User() != nil {
		t.Errorf("session not ended: %v, user %+v", s.signedOut, c.User())
	}
}

func TestSignOutError(t *testing.T) {
	r, _ := newRelay()
	c, _ := r.Connect(extOrigin, &domain.User{UID: "u1"}, "broken")

	r.Handle(context.Background(), extOrigin, c.ID, Caller{}, Message{Type: TypeSignOut})
	got := receive(t, c)
	if got.Type != TypeSignedOut || got.Error == nil {
		t.Errorf("reply = %+v", got)
	}
}

func TestRunBroadcastsToBoundConnections(t *testing.T) {
	r, _ := newRelay()
	mine, _ := r.Connect(extOrigin, &domain.User{UID: "u1"}, "t1")
	other, _ := r.Connect("chrome-extension://zzz", &domain.User{UID: "u2"}, "t2")
	anon, _ := r.Connect(extOrigin, nil, "")

	src := &fakeSource{subscribed: make(chan auth.Listener, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, src)
		close(done)
	}()

	var notify auth.Listener
	select {
	case notify = <-src.subscribed:
	case <-time.After(time.Second):
		t.Fatal("relay did not subscribe")
	}

	notify(redisstore.AuthEvent{UID: "u1"})
	got := receive(t, mine)
	if got.Type != TypeAuthState || got.User != nil {
		t.Errorf("broadcast = %+v", got)
	}
	if mine.User() != nil {
		t.Error("connection should be unbound after sign-out")
	}
	expectNothing(t, other)
	expectNothing(t, anon)

	cancel()
	<-done
}

func TestBrowserSignInHandedToConnection(t *testing.T) {
	r, s := newRelay()
	c, _ := r.Connect(extOrigin, nil, "")
	other, _ := r.Connect(extOrigin, nil, "")

	src := &fakeSource{subscribed: make(chan auth.Listener, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, src)
		close(done)
	}()
	var notify auth.Listener
	select {
	case notify = <-src.subscribed:
	case <-time.After(time.Second):
		t.Fatal("relay did not subscribe")
	}

	r.Handle(ctx, extOrigin, c.ID, Caller{}, Message{Type: TypeSignIn})
	if got := receive(t, c); got.SignInURL == "" {
		t.Fatalf("sign-in = %+v", got)
	}
	if len(s.pending) != 1 || s.pending[0] != c.ID {
		t.Fatalf("sign-in not started for the connection: %v", s.pending)
	}

	// the callback publishes the session for the waiting connection
	u := &domain.User{UID: "u1", Email: "ada@example.com"}
	notify(redisstore.AuthEvent{UID: "u1", User: u, Conn: c.ID, Token: "sess-9"})

	got := receive(t, c)
	if got.Type != TypeCredential || got.Credential == nil || got.Credential.SessionToken != "sess-9" {
		t.Errorf("credential = %+v", got)
	}
	got = receive(t, c)
	if got.Type != TypeAuthState || got.User == nil || got.User.UID != "u1" {
		t.Errorf("auth-state = %+v", got)
	}
	if c.User() == nil || c.User().UID != "u1" {
		t.Errorf("connection bound to %+v", c.User())
	}
	expectNothing(t, other)

	r.Handle(ctx, extOrigin, c.ID, Caller{}, Message{Type: TypeAuthRequest})
	if got := receive(t, c); got.User == nil || got.User.UID != "u1" {
		t.Errorf("auth-request after callback = %+v", got)
	}

	// unknown connections are skipped, the broadcast still runs
	notify(redisstore.AuthEvent{UID: "u1", User: u, Conn: "gone", Token: "sess-10"})
	if got := receive(t, c); got.Type != TypeAuthState {
		t.Errorf("broadcast = %+v", got)
	}

	cancel()
	<-done
}

func TestCallerSessionRebindsConnection(t *testing.T) {
	r, _ := newRelay()
	c, _ := r.Connect(extOrigin, nil, "")
	ctx := context.Background()

	caller := Caller{User: &domain.User{UID: "u7"}, Token: "cookie-tok"}
	r.Handle(ctx, extOrigin, c.ID, caller, Message{Type: TypeAuthRequest})
	if got := receive(t, c); got.User == nil || got.User.UID != "u7" {
		t.Errorf("auth-state = %+v", got)
	}

	// sign-out ends the session the caller brought
	r.Handle(ctx, extOrigin, c.ID, Caller{}, Message{Type: TypeSignOut})
	receive(t, c)
	if c.User() != nil {
		t.Error("still bound after sign-out")
	}
}

func TestDisconnectClosesOutbox(t *testing.T) {
	r, _ := newRelay()
	c, _ := r.Connect(extOrigin, nil, "")
	r.Disconnect(c)
	r.Disconnect(c)

	if _, ok := <-c.Outbox(); ok {
		t.Error("outbox should be closed")
	}
	if r.Registry().Len() != 0 {
		t.Error("registry should be empty")
	}
	r.Handle(context.Background(), extOrigin, c.ID, Caller{}, Message{Type: TypePing})
}
