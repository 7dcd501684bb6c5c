package offline

import (
	"net/http"
	"sync"

	"github.com/educonnect/educonnect-client/pkg/metrics"
	gocache "github.com/patrickmn/go-cache"
)

// CachedResponse is a fully materialized response snapshot. Bodies are
// byte slices, never live streams, so a cached entry can be replayed any
// number of times.
type CachedResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Storage manages the named cache versions. Only one version is current at a
// time; the rest are garbage awaiting the activation sweep.
type Storage struct {
	mu       sync.RWMutex
	versions map[string]*VersionCache
}

// NewStorage creates an empty cache storage.
func NewStorage() *Storage {
	return &Storage{versions: make(map[string]*VersionCache)}
}

// Open returns the cache for the given version name, creating it if needed.
func (s *Storage) Open(name string) *VersionCache {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vc, ok := s.versions[name]; ok {
		return vc
	}

	vc := &VersionCache{
		name:    name,
		entries: gocache.New(gocache.NoExpiration, 0),
	}
	s.versions[name] = vc
	return vc
}

// Keys lists every known cache version name.
func (s *Storage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.versions))
	for name := range s.versions {
		names = append(names, name)
	}
	return names
}

// Delete removes an entire cache version. Returns whether it existed.
func (s *Storage) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	vc, ok := s.versions[name]
	if ok {
		vc.entries.Flush()
		delete(s.versions, name)
	}
	return ok
}

// VersionCache maps request URLs to captured responses for one cache
// generation.
type VersionCache struct {
	name    string
	entries *gocache.Cache
}

// Name returns the version tag this cache belongs to.
func (vc *VersionCache) Name() string {
	return vc.name
}

// Match looks up the captured response for a request URL.
func (vc *VersionCache) Match(url string) (*CachedResponse, bool) {
	val, found := vc.entries.Get(url)
	if !found {
		return nil, false
	}
	resp, ok := val.(*CachedResponse)
	if !ok {
		vc.entries.Delete(url)
		return nil, false
	}
	return resp, true
}

// Put stores a captured response under a request URL.
func (vc *VersionCache) Put(url string, resp *CachedResponse) {
	vc.entries.Set(url, resp, gocache.NoExpiration)
	metrics.CacheEntries.WithLabelValues(vc.name).Set(float64(vc.entries.ItemCount()))
}

// Len returns the number of entries in this version.
func (vc *VersionCache) Len() int {
	return vc.entries.ItemCount()
}
