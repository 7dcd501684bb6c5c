package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/educonnect/educonnect-client/pkg/httpclient"
	"github.com/educonnect/educonnect-client/pkg/logger"
	"github.com/educonnect/educonnect-client/pkg/metrics"
	"github.com/educonnect/educonnect-client/pkg/retry"
	"go.uber.org/zap"
)

// CacheVersion names the current cache generation. Bumping it on deploy is
// the invalidation mechanism: activation sweeps every differently-named
// cache.
const CacheVersion = "educonnect-cache-v3"

// StaticAssetsPrefix covers content-hashed immutable bundles; anything under
// it is safe to serve cache-first forever.
const StaticAssetsPrefix = "/assets/"

// workerScriptPath is never intercepted, which keeps the worker from caching
// its own update channel.
const workerScriptPath = "/sw.js"

// appShellPaths is the minimal resource set needed to boot offline.
var appShellPaths = []string{
	"/",
	"/manifest.webmanifest",
	"/icons/icon-192.png",
	"/icons/icon-512.png",
}

const rootDocumentPath = "/"

// SkipWaitingMessage forces immediate activation, used by the page to
// coordinate seamless version upgrades.
const SkipWaitingMessage = "SKIP_WAITING"

// Message is an instruction sent from the page to the worker.
type Message struct {
	Type string `json:"type"`
}

// LifecycleState tracks the worker through install and activation.
type LifecycleState int

const (
	StateInstalling LifecycleState = iota
	StateWaiting
	StateActive
)

func (s LifecycleState) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateWaiting:
		return "waiting"
	default:
		return "active"
	}
}

// Worker layers a versioned local cache in front of the network for
// same-origin GET traffic: network-first for navigable documents, cache-first
// for immutable hashed assets.
type Worker struct {
	origin  *url.URL
	network httpclient.Client
	storage *Storage
	current *VersionCache

	mu          sync.Mutex
	state       LifecycleState
	skipWaiting bool
}

// NewWorker builds a worker for the given same-origin base URL. Requests to
// any other origin pass through untouched.
func NewWorker(origin string, network httpclient.Client, storage *Storage) (*Worker, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid worker origin %q", origin)
	}

	return &Worker{
		origin:  u,
		network: network,
		storage: storage,
		current: storage.Open(CacheVersion),
		state:   StateInstalling,
	}, nil
}

// State returns the current lifecycle state.
func (w *Worker) State() LifecycleState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Install pre-populates the current cache version with the app shell and
// signals immediate activation intent. Individual shell fetch failures are
// logged, not fatal; a partially warmed cache still beats an empty one.
func (w *Worker) Install(ctx context.Context) error {
	logger.Info("Worker installing", zap.String("cache_version", CacheVersion))

	cfg := retry.PrecacheConfig()
	for _, path := range appShellPaths {
		path := path
		err := retry.Do(ctx, cfg, "precache "+path, func() error {
			return w.precache(ctx, path)
		})
		if err != nil {
			logger.Warn("Failed to precache shell resource",
				zap.String("path", path),
				zap.Error(err))
		}
	}

	w.mu.Lock()
	// Do not wait for other open tabs: request activation as soon as install
	// completes.
	w.skipWaiting = true
	w.state = StateWaiting
	w.mu.Unlock()

	logger.Info("Worker installed", zap.Int("precached", w.current.Len()))
	return nil
}

func (w *Worker) precache(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.origin.ResolveReference(&url.URL{Path: path}).String(), nil)
	if err != nil {
		return err
	}

	resp, err := w.network.Do(req)
	if err != nil {
		return err
	}
	snapshot, err := drain(resp)
	if err != nil {
		return err
	}
	if snapshot.Status != http.StatusOK {
		return fmt.Errorf("unexpected status %d", snapshot.Status)
	}

	w.current.Put(path, snapshot)
	return nil
}

// Activate sweeps every cache version other than the current one and takes
// control immediately instead of waiting for a reload.
func (w *Worker) Activate(ctx context.Context) error {
	swept := 0
	for _, name := range w.storage.Keys() {
		if name == CacheVersion {
			continue
		}
		if w.storage.Delete(name) {
			swept++
			metrics.CacheVersionsSwept.Inc()
		}
	}

	w.mu.Lock()
	w.state = StateActive
	w.mu.Unlock()

	logger.Info("Worker activated",
		zap.String("cache_version", CacheVersion),
		zap.Int("stale_versions_swept", swept))
	return nil
}

// HandleMessage processes an instruction from the page. SKIP_WAITING forces
// a waiting worker to activate now.
func (w *Worker) HandleMessage(ctx context.Context, msg Message) error {
	if msg.Type != SkipWaitingMessage {
		return fmt.Errorf("unknown worker message type %q", msg.Type)
	}

	w.mu.Lock()
	w.skipWaiting = true
	waiting := w.state == StateWaiting
	w.mu.Unlock()

	if waiting {
		return w.Activate(ctx)
	}
	return nil
}

// Fetch intercepts a request per the routing policy. Non-GET, cross-origin
// and worker-script requests pass straight through to the network.
func (w *Worker) Fetch(req *http.Request) (*http.Response, error) {
	if !w.intercepts(req) {
		return w.network.Do(req)
	}

	switch {
	case isNavigation(req):
		return w.networkFirst(req, "navigation", true)
	case strings.HasPrefix(req.URL.Path, StaticAssetsPrefix):
		return w.cacheFirst(req)
	default:
		return w.networkFirst(req, "resource", false)
	}
}

func (w *Worker) intercepts(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if req.URL.Path == workerScriptPath {
		return false
	}
	return req.URL.Host == "" || strings.EqualFold(req.URL.Host, w.origin.Host)
}

// isNavigation detects navigable document requests: explicit navigation
// mode, or an Accept header asking for HTML.
func isNavigation(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

// networkFirst tries the network, caching a successful response as a
// side effect, and falls back to the exact cached entry. Navigations
// additionally fall back to the cached root document, the offline SPA shell.
func (w *Worker) networkFirst(req *http.Request, route string, rootFallback bool) (*http.Response, error) {
	key := cacheKey(req)

	resp, err := w.network.Do(req)
	if err == nil {
		snapshot, drainErr := drain(resp)
		if drainErr != nil {
			return nil, drainErr
		}
		if snapshot.Status == http.StatusOK {
			// Background write: the snapshot is already fully materialized,
			// so the response handed back can never race the cache put.
			go w.current.Put(key, snapshot)
		}
		return snapshot.response(req), nil
	}

	if entry, ok := w.current.Match(key); ok {
		metrics.CacheHits.WithLabelValues(route).Inc()
		logger.Debug("Serving cached response after network failure",
			zap.String("url", key),
			zap.Error(err))
		return entry.response(req), nil
	}

	if rootFallback {
		if entry, ok := w.current.Match(rootDocumentPath); ok {
			metrics.CacheHits.WithLabelValues(route).Inc()
			logger.Debug("Serving cached shell for offline navigation", zap.String("url", key))
			return entry.response(req), nil
		}
	}

	metrics.CacheMisses.WithLabelValues(route).Inc()
	return nil, err
}

// cacheFirst serves hashed immutable assets from cache, populating it from
// the network on first sight.
func (w *Worker) cacheFirst(req *http.Request) (*http.Response, error) {
	key := cacheKey(req)

	if entry, ok := w.current.Match(key); ok {
		metrics.CacheHits.WithLabelValues("asset").Inc()
		return entry.response(req), nil
	}
	metrics.CacheMisses.WithLabelValues("asset").Inc()

	resp, err := w.network.Do(req)
	if err != nil {
		return nil, err
	}
	snapshot, err := drain(resp)
	if err != nil {
		return nil, err
	}
	if snapshot.Status == http.StatusOK {
		go w.current.Put(key, snapshot)
	}
	return snapshot.response(req), nil
}

func cacheKey(req *http.Request) string {
	if req.URL.RawQuery != "" {
		return req.URL.Path + "?" + req.URL.RawQuery
	}
	return req.URL.Path
}

// drain fully consumes a live response body into a replayable snapshot. The
// original body is closed; callers only ever see byte-backed responses, so
// the body stream cannot be read twice.
func drain(resp *http.Response) (*CachedResponse, error) {
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &CachedResponse{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

// response materializes the snapshot as a fresh *http.Response.
func (cr *CachedResponse) response(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    cr.Status,
		Status:        fmt.Sprintf("%d %s", cr.Status, http.StatusText(cr.Status)),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        cr.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(cr.Body)),
		ContentLength: int64(len(cr.Body)),
		Request:       req,
	}
}
