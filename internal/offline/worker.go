// Package offline serves the static shell cache-first from a versioned cache,
// falling back to the asset origin and, when that is unreachable, to the cached
// shell page.
package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
	"github.com/MrSnakeDoc/openbinder/internal/sources/manifest"
	redisstore "github.com/MrSnakeDoc/openbinder/internal/store/redis"
	"github.com/MrSnakeDoc/openbinder/internal/utils"
)

// CachePrefix prefixes every cache this worker owns.
const CachePrefix = "OpenBinder-cache-"

// ControlSkipWaiting is the control message that activates a waiting version.
const ControlSkipWaiting = "skipWaiting"

// maxBodyBytes caps what is read from the origin for a single asset.
const maxBodyBytes = 10 << 20

// DefaultMaxRuntimeEntries bounds the responses cached on demand next to the
// manifest assets of a version.
const DefaultMaxRuntimeEntries = 256

var (
	// ErrOffline is returned when neither the network nor the cache can answer.
	ErrOffline = errors.New("asset origin unreachable and no cached copy")

	// ErrForeignTarget is returned for absolute URLs outside the asset origin
	// and the bypass hosts.
	ErrForeignTarget = errors.New("target host not allowed")
)

// State is the lifecycle of the installed version.
type State string

const (
	StateNone       State = ""
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActivated  State = "activated"
)

// CacheName returns the cache of a manifest version.
func CacheName(version string) string {
	return CachePrefix + version
}

// CacheStore is the cache storage the worker writes to.
type CacheStore interface {
	OpenCache(ctx context.Context, name string) error
	CacheNames(ctx context.Context) ([]string, error)
	PutCacheEntry(ctx context.Context, cache string, e *redisstore.CacheEntry) error
	GetCacheEntry(ctx context.Context, cache, url string) (*redisstore.CacheEntry, error)
	DeleteCache(ctx context.Context, name string) error
	CacheEntries(ctx context.Context, cache string) ([]*redisstore.CacheEntry, error)
	DeleteCacheEntries(ctx context.Context, cache string, urls ...string) error
	CacheLen(ctx context.Context, cache string) (int64, error)
}

// Response is what Fetch answers with.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	FromCache bool
}

// Options configures a Worker.
type Options struct {
	Origin      string        // upstream serving the static shell
	BypassHosts []string      // hosts never served from or written to the cache
	Timeout     time.Duration // upstream request timeout

	// MaxRuntimeEntries caps responses cached on a miss; 0 means
	// DefaultMaxRuntimeEntries.
	MaxRuntimeEntries int
}

// Worker owns the lifecycle of cached shell versions.
type Worker struct {
	store  CacheStore
	origin *url.URL
	bypass map[string]bool
	client *http.Client
	log    logger.Logger
	now    func() time.Time
	maxRun int

	mu      sync.RWMutex
	state   State
	active  *manifest.Manifest
	waiting *manifest.Manifest
}

func NewWorker(store CacheStore, opts Options, log logger.Logger) (*Worker, error) {
	origin, err := url.Parse(strings.TrimRight(opts.Origin, "/"))
	if err != nil || origin.Host == "" || (origin.Scheme != "http" && origin.Scheme != "https") {
		return nil, fmt.Errorf("invalid asset origin %q", opts.Origin)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bypass := make(map[string]bool, len(opts.BypassHosts))
	for _, h := range opts.BypassHosts {
		bypass[strings.ToLower(h)] = true
	}
	maxRun := opts.MaxRuntimeEntries
	if maxRun <= 0 {
		maxRun = DefaultMaxRuntimeEntries
	}
	return &Worker{
		store:  store,
		origin: origin,
		bypass: bypass,
		client: &http.Client{Timeout: timeout},
		log:    log,
		now:    time.Now,
		maxRun: maxRun,
	}, nil
}

// State returns the lifecycle state and the serving and waiting versions.
func (w *Worker) State() (state State, active, waiting string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.active != nil {
		active = w.active.Version
	}
	if w.waiting != nil {
		waiting = w.waiting.Version
	}
	return w.state, active, waiting
}

// Install fetches every asset of m into its versioned cache. The install fails
// as a whole when any asset cannot be fetched. A version that is already
// serving or waiting is not installed again.
func (w *Worker) Install(ctx context.Context, m *manifest.Manifest) error {
	w.mu.Lock()
	if (w.active != nil && w.active.Version == m.Version) || (w.waiting != nil && w.waiting.Version == m.Version) {
		w.mu.Unlock()
		return nil
	}
	prev := w.state
	w.state = StateInstalling
	w.mu.Unlock()

	name := CacheName(m.Version)
	w.log.Info("installing asset version", logger.String("cache", name), logger.Int("assets", len(m.Assets)))

	if err := w.populate(ctx, name, m.Assets); err != nil {
		if derr := w.store.DeleteCache(ctx, name); derr != nil {
			w.log.Warn("failed to drop partial cache", logger.String("cache", name), logger.Error(derr))
		}
		w.mu.Lock()
		w.state = prev
		w.mu.Unlock()
		return fmt.Errorf("install %s: %w", m.Version, err)
	}

	w.mu.Lock()
	w.waiting = m
	w.state = StateInstalled
	w.mu.Unlock()
	w.log.Info("asset version installed", logger.String("cache", name))

	if m.ShouldSkipWaiting() {
		return w.Activate(ctx)
	}
	return nil
}

func (w *Worker) populate(ctx context.Context, cache string, assets []string) error {
	if err := w.store.OpenCache(ctx, cache); err != nil {
		return err
	}
	for _, path := range assets {
		resp, err := w.network(ctx, w.upstream(path), nil)
		if err != nil {
			return err
		}
		if resp.Status != http.StatusOK {
			return fmt.Errorf("%s: unexpected status %d", path, resp.Status)
		}
		if err := w.store.PutCacheEntry(ctx, cache, w.entry(path, resp)); err != nil {
			return err
		}
	}
	return nil
}

// Activate makes the waiting version the serving one and deletes every other
// cache of this worker. Without a waiting version it does nothing.
func (w *Worker) Activate(ctx context.Context) error {
	w.mu.Lock()
	if w.waiting == nil {
		w.mu.Unlock()
		return nil
	}
	w.state = StateActivating
	w.active, w.waiting = w.waiting, nil
	version := w.active.Version
	w.mu.Unlock()

	if _, err := w.Prune(ctx); err != nil {
		w.log.Warn("failed to delete old caches", logger.Error(err))
	}

	w.mu.Lock()
	w.state = StateActivated
	w.mu.Unlock()
	w.log.Info("asset version activated", logger.String("cache", CacheName(version)))
	return nil
}

// Prune deletes caches with the worker prefix that belong neither to the
// serving nor to the waiting version, and returns how many it removed.
func (w *Worker) Prune(ctx context.Context) (int, error) {
	keep := make(map[string]bool, 2)
	w.mu.RLock()
	if w.active != nil {
		keep[CacheName(w.active.Version)] = true
	}
	if w.waiting != nil {
		keep[CacheName(w.waiting.Version)] = true
	}
	w.mu.RUnlock()
	if len(keep) == 0 {
		return 0, nil
	}

	names, err := w.store.CacheNames(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, name := range names {
		if !strings.HasPrefix(name, CachePrefix) || keep[name] {
			continue
		}
		if err := w.store.DeleteCache(ctx, name); err != nil {
			return deleted, err
		}
		w.log.Info("deleted old cache", logger.String("cache", name))
		deleted++
	}
	return deleted, nil
}

// Evict removes runtime-cached responses stored before cutoff from the serving
// cache. Manifest assets are never evicted.
func (w *Worker) Evict(ctx context.Context, cutoff time.Time) (int, error) {
	w.mu.RLock()
	active := w.active
	w.mu.RUnlock()
	if active == nil {
		return 0, nil
	}

	pinned := make(map[string]bool, len(active.Assets))
	for _, a := range active.Assets {
		pinned[a] = true
	}

	cache := CacheName(active.Version)
	entries, err := w.store.CacheEntries(ctx, cache)
	if err != nil {
		return 0, err
	}
	var stale []string
	for _, e := range entries {
		if !pinned[e.URL] && e.StoredAt.Before(cutoff) {
			stale = append(stale, e.URL)
		}
	}
	if err := w.store.DeleteCacheEntries(ctx, cache, stale...); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// Control handles a control message from a client.
func (w *Worker) Control(ctx context.Context, msg string) error {
	if strings.TrimSpace(msg) != ControlSkipWaiting {
		return fmt.Errorf("%w: unknown control message %q", domain.ErrInvalidInput, msg)
	}
	return w.Activate(ctx)
}

// Fetch answers a request for the asset origin. Absolute URLs must point at
// the origin or a bypass host. Non-GET requests and requests to bypass hosts
// go straight to the network. Everything else is served from the cache first;
// successful same-origin responses without a query string are cached on a
// miss while the runtime budget lasts. When the network fails, navigations get
// the cached /index.html.
func (w *Worker) Fetch(ctx context.Context, r *http.Request) (*Response, error) {
	target, err := w.target(r.URL)
	if err != nil {
		return nil, err
	}

	if r.Method != http.MethodGet || w.bypassed(target) {
		return w.network(ctx, target, r)
	}

	key := cacheKey(target)
	serving := w.serving()
	cache := ""
	if serving != nil {
		cache = CacheName(serving.Version)
	}
	if cache != "" {
		if e, err := w.store.GetCacheEntry(ctx, cache, key); err != nil {
			w.log.Warn("cache read failed", logger.String("url", key), logger.Error(err))
		} else if e != nil {
			return fromEntry(e), nil
		}
	}

	resp, err := w.network(ctx, target, r)
	if err != nil {
		w.log.Warn("asset fetch failed", logger.String("url", target.String()), logger.Error(err))
		if cache != "" && strings.Contains(r.Header.Get("Accept"), "text/html") {
			if e, cerr := w.store.GetCacheEntry(ctx, cache, "/index.html"); cerr == nil && e != nil {
				return fromEntry(e), nil
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrOffline, err)
	}

	if cache != "" && resp.Status == http.StatusOK && w.sameOrigin(target) && target.RawQuery == "" {
		w.storeRuntime(ctx, cache, len(serving.Assets), key, resp)
	}
	return resp, nil
}

// storeRuntime caches a response fetched on a miss unless the cache already
// holds its manifest assets plus the runtime budget.
func (w *Worker) storeRuntime(ctx context.Context, cache string, assets int, key string, resp *Response) {
	n, err := w.store.CacheLen(ctx, cache)
	if err != nil {
		w.log.Warn("cache size read failed", logger.String("cache", cache), logger.Error(err))
		return
	}
	if n >= int64(assets+w.maxRun) {
		w.log.Debug("runtime cache full", logger.String("cache", cache), logger.String("url", key))
		return
	}
	if err := w.store.PutCacheEntry(ctx, cache, w.entry(key, resp)); err != nil {
		w.log.Warn("cache write failed", logger.String("url", key), logger.Error(err))
	}
}

// ServeHTTP serves Fetch results.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	// Absolute-form request lines only ever reach the asset origin here.
	if r.URL.IsAbs() && !w.sameOrigin(r.URL) {
		http.Error(rw, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	resp, err := w.Fetch(r.Context(), r)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ErrForeignTarget) {
			status = http.StatusForbidden
		}
		http.Error(rw, http.StatusText(status), status)
		return
	}
	h := rw.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if resp.FromCache {
		h.Set("X-OpenBinder-Cache", "hit")
	}
	rw.WriteHeader(resp.Status)
	if r.Method != http.MethodHead {
		_, _ = rw.Write(resp.Body)
	}
}

func (w *Worker) serving() *manifest.Manifest {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.active
}

// target resolves a request URL against the origin. Absolute URLs are kept
// only for the origin and the bypass hosts.
func (w *Worker) target(u *url.URL) (*url.URL, error) {
	if !u.IsAbs() {
		return w.upstream(u.RequestURI()), nil
	}
	if (u.Scheme != "http" && u.Scheme != "https") || !(w.sameOrigin(u) || w.bypassed(u)) {
		return nil, fmt.Errorf("%w: %s", ErrForeignTarget, u.Host)
	}
	return u, nil
}

// bypassed matches a configured bypass entry against host:port or host.
func (w *Worker) bypassed(u *url.URL) bool {
	return w.bypass[strings.ToLower(u.Host)] || w.bypass[strings.ToLower(u.Hostname())]
}

func (w *Worker) upstream(path string) *url.URL {
	ref, err := url.Parse(path)
	if err != nil {
		ref = &url.URL{Path: "/"}
	}
	return w.origin.ResolveReference(ref)
}

func (w *Worker) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, w.origin.Scheme) && strings.EqualFold(u.Host, w.origin.Host)
}

func cacheKey(u *url.URL) string {
	key := u.EscapedPath()
	if key == "" {
		key = "/"
	}
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

func (w *Worker) network(ctx context.Context, target *url.URL, src *http.Request) (*Response, error) {
	method := http.MethodGet
	var body io.Reader
	if src != nil {
		method = src.Method
		if src.Body != nil && method != http.MethodGet && method != http.MethodHead {
			body = src.Body
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	if src != nil {
		for _, h := range []string{"Accept", "Accept-Language", "Content-Type"} {
			if v := src.Header.Get(h); v != "" {
				req.Header.Set(h, v)
			}
		}
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer utils.Close(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	header := make(http.Header)
	for _, h := range []string{"Content-Type", "Cache-Control", "ETag", "Last-Modified"} {
		if v := resp.Header.Get(h); v != "" {
			header.Set(h, v)
		}
	}
	return &Response{Status: resp.StatusCode, Header: header, Body: data}, nil
}

func (w *Worker) entry(key string, resp *Response) *redisstore.CacheEntry {
	return &redisstore.CacheEntry{
		URL:      key,
		Status:   resp.Status,
		Header:   resp.Header,
		Body:     resp.Body,
		StoredAt: w.now().UTC(),
	}
}

func fromEntry(e *redisstore.CacheEntry) *Response {
	return &Response{Status: e.Status, Header: e.Header, Body: e.Body, FromCache: true}
}
