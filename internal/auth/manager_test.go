package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
)

type fakeIdentity struct {
	user *domain.User
}

func (f *fakeIdentity) AuthCodeURL(state string) string {
	return "https://idp.example/authorize?state=" + state
}

func (f *fakeIdentity) Exchange(_ context.Context, code string) (*domain.User, string, error) {
	if code != "good" {
		return nil, "", errors.New("bad code")
	}
	return f.user, "a.b.c", nil
}

func (f *fakeIdentity) Verify(_ context.Context, raw string) (*domain.User, error) {
	if raw != "a.b.c" {
		return nil, domain.ErrUnauthenticated
	}
	return f.user, nil
}

func newTestManager(t *testing.T) (*Manager, *redisstore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisstore.NewStore(client)
	id := &fakeIdentity{user: &domain.User{UID: "u1", Email: "ada@example.com"}}
	return NewManager(id, store, time.Hour, logger.Nop()), store
}

func stateFrom(t *testing.T, url string) string {
	t.Helper()
	i := strings.Index(url, "state=")
	if i < 0 {
		t.Fatalf("no state in %q", url)
	}
	return url[i+len("state="):]
}

func TestSignInModes(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	tests := []struct {
		mode string
		want string
	}{
		{"popup", ModePopup},
		{"redirect", ModeRedirect},
		{"", ModeRedirect},
		{"weird", ModeRedirect},
	}
	for _, tt := range tests {
		start, err := m.SignIn(ctx, tt.mode, "/")
		if err != nil {
			t.Fatalf("SignIn(%q) = %v", tt.mode, err)
		}
		if start.Mode != tt.want {
			t.Errorf("SignIn(%q).Mode = %q, want %q", tt.mode, start.Mode, tt.want)
		}
	}
}

func TestCallbackCreatesSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	start, err := m.SignIn(ctx, ModePopup, "/share?x=1")
	if err != nil {
		t.Fatal(err)
	}
	res, err := m.Callback(ctx, stateFrom(t, start.URL), "good")
	if err != nil {
		t.Fatalf("Callback() = %v", err)
	}
	if res.ReturnTo != "/share?x=1" || res.Mode != ModePopup {
		t.Errorf("result = %+v", res)
	}

	u, err := m.Authenticate(ctx, res.Session.Token)
	if err != nil || u.UID != "u1" {
		t.Fatalf("Authenticate() = %+v, %v", u, err)
	}

	// state is single use
	if _, err := m.Callback(ctx, stateFrom(t, start.URL), "good"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("replayed state: got %v", err)
	}
}

func TestCallbackPublishesBridgeConnection(t *testing.T) {
	m, store := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := store.SubscribeAuthEvents(ctx)
	if err != nil {
		t.Fatal(err)
	}

	start, err := m.SignInFor(ctx, ModePopup, "/", "conn-7")
	if err != nil {
		t.Fatal(err)
	}
	res, err := m.Callback(ctx, stateFrom(t, start.URL), "good")
	if err != nil {
		t.Fatalf("Callback() = %v", err)
	}

	select {
	case ev := <-events:
		if ev.UID != "u1" || ev.Conn != "conn-7" || ev.Token != res.Session.Token {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no sign-in event")
	}

	// sign-ins not started for a connection never carry the token
	if _, err := m.SignInWithIDToken(ctx, "a.b.c"); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-events:
		if ev.Conn != "" || ev.Token != "" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no sign-in event")
	}
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.Callback(context.Background(), "forged", "good"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("got %v, want ErrUnauthenticated", err)
	}
}

func TestSignOut(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := m.SignInWithIDToken(ctx, "a.b.c")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SignOut(ctx, sess.Token); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Authenticate(ctx, sess.Token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("after sign-out: got %v", err)
	}
	if err := m.SignOut(ctx, sess.Token); err != nil {
		t.Errorf("second sign-out should be a no-op, got %v", err)
	}
}

func TestAuthenticateBearerIDToken(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	u, err := m.Authenticate(ctx, "a.b.c")
	if err != nil || u.UID != "u1" {
		t.Errorf("Authenticate(id token) = %+v, %v", u, err)
	}
	for _, tok := range []string{"", "opaque", "x.y.z"} {
		if _, err := m.Authenticate(ctx, tok); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Errorf("Authenticate(%q) = %v", tok, err)
		}
	}
}

func TestSafeReturnTo(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/":                    "/",
		"/share?u=1":           "/share?u=1",
		"//evil.example":       "/",
		"/\\evil.example":      "/",
		"https://evil.example": "/",
	}
	for in, want := range tests {
		if got := SafeReturnTo(in); got != want {
			t.Errorf("SafeReturnTo(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHubDeliversEvents(t *testing.T) {
	m, store := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(store, logger.Nop())
	got := make(chan string, 4)
	unsubscribe := hub.OnAuthStateChange(func(ev redisstore.AuthEvent) {
		state := "out"
		if ev.User != nil {
			state = "in"
		}
		got <- ev.UID + ":" + state
	})
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()

	// Run subscribes asynchronously; publish until the first event lands.
	deadline := time.After(2 * time.Second)
	var sess *redisstore.Session
	for sess == nil {
		s, err := m.SignInWithIDToken(ctx, "a.b.c")
		if err != nil {
			t.Fatal(err)
		}
		select {
		case ev := <-got:
			if ev != "u1:in" {
				t.Fatalf("event = %q", ev)
			}
			sess = s
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no sign-in event delivered")
		}
	}

	if err := m.SignOut(ctx, sess.Token); err != nil {
		t.Fatal(err)
	}
	for {
		select {
		case ev := <-got:
			if ev == "u1:in" {
				continue
			}
			if ev != "u1:out" {
				t.Fatalf("event = %q", ev)
			}
			cancel()
			<-done
			return
		case <-time.After(2 * time.Second):
			t.Fatal("no sign-out event delivered")
		}
	}
}
