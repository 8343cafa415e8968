package share

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Shared
	}{
		{"explicit url", "url=https://a.example&title=Hi", Shared{Title: "Hi", URL: "https://a.example"}},
		{"url from text", "text=" + url.QueryEscape("look at https://b.example/x?y=1 now"), Shared{Text: "look at  now", URL: "https://b.example/x?y=1"}},
		{"url only text", "text=" + url.QueryEscape("https://c.example"), Shared{URL: "https://c.example"}},
		{"explicit wins over text", "url=https://a.example&text=" + url.QueryEscape("https://b.example"), Shared{Text: "https://b.example", URL: "https://a.example"}},
		{"nothing", "", Shared{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			if got := ParseParams(q); got != tt.want {
				t.Errorf("ParseParams() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseMeta(t *testing.T) {
	page := `<!doctype html><html><head>
<title> Plain &amp; simple </title>
<meta property="og:title" content="OG Title">
<meta name="og:description" content="About &lt;b&gt;this&lt;/b&gt;">
<meta property="og:image" content="/img/cover.png">
</head><body><meta property="og:title" content="ignored"></body></html>`

	m := parseMeta(strings.NewReader(page))
	if m.Title != "OG Title" {
		t.Errorf("Title = %q", m.Title)
	}
	if m.Image != "/img/cover.png" {
		t.Errorf("Image = %q", m.Image)
	}

	noOG := parseMeta(strings.NewReader(`<html><head><title>Just title</title></head></html>`))
	if noOG.Title != "Just title" {
		t.Errorf("Title = %q", noOG.Title)
	}
}

func TestScraperFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><title>T</title>
<meta property="og:description" content="Some <em>rich</em>   text">
<meta property="og:image" content="/cover.jpg"></head></html>`)
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewScraper(2*time.Second, 1<<20, true)
	m := s.Fetch(context.Background(), srv.URL+"/page")
	if m.Title != "T" || m.Description != "Some rich text" || m.Image != srv.URL+"/cover.jpg" {
		t.Errorf("Fetch() = %+v", m)
	}

	for _, u := range []string{srv.URL + "/json", srv.URL + "/missing", "ftp://x", "::bad"} {
		if got := s.Fetch(context.Background(), u); got != (Meta{}) {
			t.Errorf("Fetch(%q) = %+v, want empty", u, got)
		}
	}
}

func TestScraperBlocksPrivateAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>secret</title></head></html>`)
	}))
	defer srv.Close()

	s := NewScraper(time.Second, 1<<20, false)
	if got := s.Fetch(context.Background(), srv.URL); got != (Meta{}) {
		t.Errorf("loopback fetch should be refused, got %+v", got)
	}
}

type stubMeta struct {
	meta  Meta
	calls int
}

func (s *stubMeta) Fetch(context.Context, string) Meta {
	s.calls++
	return s.meta
}

func setup(t *testing.T, meta Meta) (*Service, *redisstore.Store, *stubMeta) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tick := 0
	store := redisstore.NewStore(client, redisstore.WithClock(func() time.Time {
		tick++
		return time.Unix(1700000000+int64(tick), 0)
	}))
	stub := &stubMeta{meta: meta}
	return NewService(store, stub, logger.Nop()), store, stub
}

func signedIn() context.Context {
	return domain.WithUser(context.Background(), &domain.User{UID: "u1"})
}

func TestPrefillExplicitTitleWins(t *testing.T) {
	svc, _, _ := setup(t, Meta{Title: "Scraped", Description: "scraped desc", Image: "https://img"})

	p, err := svc.Prefill(context.Background(), Shared{URL: "https://example.com", Title: "Hi"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Hi" || p.Description != "scraped desc" || p.Image != "https://img" {
		t.Errorf("Prefill() = %+v", p)
	}
	if p.SignedIn || p.Empty != "Sign in to select a folder" {
		t.Errorf("signed-out state = %+v", p)
	}

	p, _ = svc.Prefill(context.Background(), Shared{URL: "https://example.com", Title: "  ", Text: "mine"})
	if p.Title != "Scraped" || p.Description != "mine" {
		t.Errorf("Prefill() = %+v", p)
	}
}

func TestPrefillSelectsMostRecentFolder(t *testing.T) {
	svc, store, stub := setup(t, Meta{})
	ctx := signedIn()

	p, err := svc.Prefill(ctx, Shared{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Empty != "No folders" || stub.calls != 0 {
		t.Errorf("Prefill() = %+v, fetches = %d", p, stub.calls)
	}

	_, _ = store.CreateFolder(ctx, domain.Active, "First")
	last, _ := store.CreateFolder(ctx, domain.Active, "Second")
	p, _ = svc.Prefill(ctx, Shared{})
	if p.SelectedFolderID != last.ID || len(p.Folders) != 2 {
		t.Errorf("Prefill() = %+v", p)
	}
}

func TestSave(t *testing.T) {
	svc, store, _ := setup(t, Meta{Title: "Scraped", Description: "d", Image: "https://img"})
	ctx := signedIn()
	f, _ := store.CreateFolder(ctx, domain.Active, "Inbox")

	if _, err := svc.Save(context.Background(), SaveRequest{FolderID: f.ID, URL: "https://x"}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("signed out: got %v", err)
	}
	if _, err := svc.Save(ctx, SaveRequest{URL: "https://x"}); !errors.Is(err, domain.ErrFolderRequired) {
		t.Errorf("no folder: got %v", err)
	}

	b, err := svc.Save(ctx, SaveRequest{FolderID: f.ID, URL: "https://x"})
	if err != nil {
		t.Fatal(err)
	}
	if b.Title != "Scraped" || b.Description != "d" || b.Thumbnail != "https://img" {
		t.Errorf("saved = %+v", b)
	}
}

func TestSaveFallsBackToURLTitle(t *testing.T) {
	svc, store, _ := setup(t, Meta{})
	ctx := signedIn()
	f, _ := store.CreateFolder(ctx, domain.Active, "Inbox")

	b, err := svc.Save(ctx, SaveRequest{FolderID: f.ID, URL: "https://x.example"})
	if err != nil {
		t.Fatal(err)
	}
	if b.Title != "https://x.example" {
		t.Errorf("title = %q", b.Title)
	}
}

func TestCreateFolderSelectsIt(t *testing.T) {
	svc, store, _ := setup(t, Meta{})
	ctx := signedIn()
	_, _ = store.CreateFolder(ctx, domain.Active, "Old")

	list, err := svc.CreateFolder(ctx, "New")
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Folders) != 2 || list.SelectedFolderID != list.Folders[1].ID {
		t.Errorf("list = %+v", list)
	}
	if _, err := svc.CreateFolder(ctx, "New"); !errors.Is(err, domain.ErrFolderExists) {
		t.Errorf("duplicate: got %v", err)
	}
}
