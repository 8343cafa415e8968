package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/openbinder/internal/utils"
)

// Meta is what a page says about itself. Fields are empty when unknown.
type Meta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// MetaFetcher fetches page metadata. Implementations never fail; they return
// an empty Meta instead.
type MetaFetcher interface {
	Fetch(ctx context.Context, rawURL string) Meta
}

var errBlockedAddress = errors.New("address not allowed")

// Scraper reads <title> and Open Graph tags from a page.
type Scraper struct {
	client   *http.Client
	maxBytes int64
	policy   *bluemonday.Policy
}

// NewScraper builds a Scraper. Unless allowPrivate is set, connections to
// loopback, private and link-local addresses are refused at dial time.
func NewScraper(timeout time.Duration, maxBytes int64, allowPrivate bool) *Scraper {
	dialer := &net.Dialer{Timeout: timeout}
	if !allowPrivate {
		dialer.Control = func(_, address string, _ syscall.RawConn) error {
			if !utils.IsPublicIP(address) {
				return fmt.Errorf("%w: %s", errBlockedAddress, address)
			}
			return nil
		}
	}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
	}
	return &Scraper{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
		policy:   bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true),
	}
}

func (s *Scraper) Fetch(ctx context.Context, rawURL string) Meta {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Meta{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Meta{}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("User-Agent", "OpenBinder/1.0 (+link preview)")

	resp, err := s.client.Do(req)
	if err != nil {
		return Meta{}
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Meta{}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return Meta{}
	}

	m := parseMeta(io.LimitReader(resp.Body, s.maxBytes))
	return Meta{
		Title:       s.clean(m.Title),
		Description: s.clean(m.Description),
		Image:       resolveRef(resp.Request.URL, m.Image),
	}
}

func (s *Scraper) clean(v string) string {
	v = html.UnescapeString(s.policy.Sanitize(v))
	return strings.Join(strings.Fields(v), " ")
}

// parseMeta walks the token stream up to </head>. og:title wins over <title>.
func parseMeta(r io.Reader) Meta {
	var (
		m       Meta
		title   string
		ogTitle string
		inTitle bool
	)
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return finish(m, ogTitle, title)
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "title":
				inTitle = title == ""
			case "meta":
				key, content := metaAttrs(tok.Attr)
				switch key {
				case "og:title":
					ogTitle = content
				case "og:description":
					m.Description = content
				case "og:image":
					m.Image = content
				}
			case "body":
				return finish(m, ogTitle, title)
			}
		case html.TextToken:
			if inTitle {
				title += string(z.Text())
			}
		case html.EndTagToken:
			tok := z.Token()
			switch tok.Data {
			case "title":
				inTitle = false
			case "head":
				return finish(m, ogTitle, title)
			}
		}
	}
}

func finish(m Meta, ogTitle, title string) Meta {
	m.Title = ogTitle
	if m.Title == "" {
		m.Title = strings.TrimSpace(title)
	}
	return m
}

func metaAttrs(attrs []html.Attribute) (key, content string) {
	for _, a := range attrs {
		switch strings.ToLower(a.Key) {
		case "property", "name":
			if key == "" {
				key = strings.ToLower(strings.TrimSpace(a.Val))
			}
		case "content":
			content = a.Val
		}
	}
	return key, content
}

// resolveRef makes a relative image reference absolute. Only http(s) results are kept.
func resolveRef(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
