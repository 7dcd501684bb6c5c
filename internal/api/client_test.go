package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/educonnect/educonnect-client/internal/api"
	"github.com/educonnect/educonnect-client/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lesson struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func newStore(t *testing.T) *session.FileStore {
	t.Helper()
	store, err := session.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func seedSession(t *testing.T, store *session.FileStore, token string) {
	t.Helper()
	require.NoError(t, store.Set(&session.Record{
		User: session.User{
			ID:    "u-1",
			Email: "student@educonnect.dev",
			Role:  session.RoleStudent,
		},
		AccessToken: token,
	}))
}

// apiRecorder is an httptest-backed fake of the remote API that records
// every request it sees.
type apiRecorder struct {
	mu      sync.Mutex
	hits    map[string]int
	auth    map[string][]string
	handler http.HandlerFunc
	server  *httptest.Server
}

func newAPIRecorder(t *testing.T, handler http.HandlerFunc) *apiRecorder {
	t.Helper()
	rec := &apiRecorder{
		hits:    make(map[string]int),
		auth:    make(map[string][]string),
		handler: handler,
	}
	rec.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.hits[r.URL.Path]++
		rec.auth[r.URL.Path] = append(rec.auth[r.URL.Path], r.Header.Get("Authorization"))
		rec.mu.Unlock()
		rec.handler(w, r)
	}))
	t.Cleanup(rec.server.Close)
	return rec
}

func (r *apiRecorder) hitCount(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[path]
}

func (r *apiRecorder) authHeaders(path string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.auth[path]...)
}

func TestClient_AuthHeaderInjection(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "stored-token")

	rec := newAPIRecorder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"data":{"id":"l-1","title":"Algebra"},"error":null,"meta":{}}`)) //nolint:errcheck
	})
	client := api.NewClient(rec.server.URL, rec.server.Client(), store)

	env, err := api.Get[lesson](context.Background(), client, "/lessons/l-1", nil)
	require.NoError(t, err)
	require.True(t, env.Ok())
	assert.Equal(t, "Algebra", env.Data.Title)

	headers := rec.authHeaders("/lessons/l-1")
	require.Len(t, headers, 1)
	assert.Equal(t, "Bearer stored-token", headers[0])
}

func TestClient_CallerHeadersWin(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "stored-token")

	rec := newAPIRecorder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null,"error":null,"meta":{}}`)) //nolint:errcheck
	})
	client := api.NewClient(rec.server.URL, rec.server.Client(), store)

	_, err := api.Get[lesson](context.Background(), client, "/admin/users", map[string]string{
		"Authorization": "Bearer impersonation-token",
	})
	require.NoError(t, err)

	headers := rec.authHeaders("/admin/users")
	require.Len(t, headers, 1)
	assert.Equal(t, "Bearer impersonation-token", headers[0], "explicit caller header must override the stored token")
}

func TestClient_NoSessionNoAuthHeader(t *testing.T) {
	store := newStore(t)

	rec := newAPIRecorder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null,"error":null,"meta":{}}`)) //nolint:errcheck
	})
	client := api.NewClient(rec.server.URL, rec.server.Client(), store)

	_, err := api.Get[lesson](context.Background(), client, "/feed", nil)
	require.NoError(t, err)

	headers := rec.authHeaders("/feed")
	require.Len(t, headers, 1)
	assert.Empty(t, headers[0], "no session record means no Authorization header")
}

func TestClient_RefreshAndRetryOnce(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "expired-token")

	rec := newAPIRecorder(t, nil)
	rec.handler = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			w.Write([]byte(`{"data":{"accessToken":"fresh-token","refreshToken":"rt-2"},"error":null,"meta":{}}`)) //nolint:errcheck
		case "/lessons":
			if r.Header.Get("Authorization") == "Bearer fresh-token" {
				w.Write([]byte(`{"data":{"id":"l-2","title":"Geometry"},"error":null,"meta":{}}`)) //nolint:errcheck
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"data":null,"error":{"code":"UNAUTHORIZED","message":"token expired"},"meta":{}}`)) //nolint:errcheck
		}
	}
	client := api.NewClient(rec.server.URL, rec.server.Client(), store)

	env, err := api.Get[lesson](context.Background(), client, "/lessons", nil)
	require.NoError(t, err)

	// Exactly three calls: original, refresh, retry
	assert.Equal(t, 2, rec.hitCount("/lessons"))
	assert.Equal(t, 1, rec.hitCount("/auth/refresh"))

	// The retried call's data is what the caller gets
	require.True(t, env.Ok())
	assert.Equal(t, "Geometry", env.Data.Title)

	// The refresh protocol patched the store in place
	got := store.Get()
	require.NotNil(t, got)
	assert.Equal(t, "fresh-token", got.AccessToken)
	assert.Equal(t, "rt-2", got.RefreshToken)

	// The refresh call itself is unauthenticated
	refreshAuth := rec.authHeaders("/auth/refresh")
	require.Len(t, refreshAuth, 1)
	assert.Empty(t, refreshAuth[0])
}

func TestClient_BoundedRetry(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "revoked-token")

	calls := 0
	rec := newAPIRecorder(t, nil)
	rec.handler = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			w.Write([]byte(`{"data":{"accessToken":"still-revoked"},"error":null,"meta":{}}`)) //nolint:errcheck
		case "/messages":
			calls++
			w.WriteHeader(http.StatusUnauthorized)
			if calls == 1 {
				w.Write([]byte(`{"data":null,"error":{"code":"UNAUTHORIZED","message":"first"},"meta":{}}`)) //nolint:errcheck
				return
			}
			w.Write([]byte(`{"data":null,"error":{"code":"UNAUTHORIZED","message":"second"},"meta":{}}`)) //nolint:errcheck
		}
	}
	client := api.NewClient(rec.server.URL, rec.server.Client(), store)

	env, err := api.Post[lesson](context.Background(), client, "/messages", map[string]string{"text": "hi"}, nil)
	require.NoError(t, err)

	// No third attempt after a 401 on the retry
	assert.Equal(t, 2, rec.hitCount("/messages"))
	assert.Equal(t, 1, rec.hitCount("/auth/refresh"))

	require.NotNil(t, env.Error)
	assert.Equal(t, "second", env.Error.Message, "caller sees the retried call's envelope")
}

func TestClient_RefreshFailurePropagation(t *testing.T) {
	tests := []struct {
		name           string
		refreshHandler func(w http.ResponseWriter)
	}{
		{
			name: "refresh endpoint rejects",
			refreshHandler: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"data":null,"error":{"code":"FORBIDDEN","message":"no cookie"},"meta":{}}`)) //nolint:errcheck
			},
		},
		{
			name: "refresh response missing access token",
			refreshHandler: func(w http.ResponseWriter) {
				w.Write([]byte(`{"data":{},"error":null,"meta":{}}`)) //nolint:errcheck
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			seedSession(t, store, "expired-token")

			rec := newAPIRecorder(t, nil)
			rec.handler = func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/auth/refresh":
					tt.refreshHandler(w)
				case "/profile":
					w.WriteHeader(http.StatusUnauthorized)
					w.Write([]byte(`{"data":null,"error":{"code":"UNAUTHORIZED","message":"token expired"},"meta":{}}`)) //nolint:errcheck
				}
			}
			client := api.NewClient(rec.server.URL, rec.server.Client(), store)

			env, err := api.Get[lesson](context.Background(), client, "/profile", nil)
			require.NoError(t, err)

			// Original 401 envelope is surfaced unchanged; no retried attempt
			assert.Equal(t, 1, rec.hitCount("/profile"))
			assert.Equal(t, 1, rec.hitCount("/auth/refresh"))
			require.NotNil(t, env.Error)
			assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

			// Storage untouched by the failed refresh
			got := store.Get()
			require.NotNil(t, got)
			assert.Equal(t, "expired-token", got.AccessToken)
		})
	}
}

func TestClient_MalformedEnvelopeIsAnError(t *testing.T) {
	store := newStore(t)

	rec := newAPIRecorder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`)) //nolint:errcheck
	})
	client := api.NewClient(rec.server.URL, rec.server.Client(), store)

	_, err := api.Get[lesson](context.Background(), client, "/feed", nil)
	assert.Error(t, err)
}

func TestClient_ErrorEnvelopePassedThrough(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "valid-token")

	rec := newAPIRecorder(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"data":null,"error":{"code":"SLOT_TAKEN","message":"session slot already booked","traceId":"t-1"},"meta":{}}`)) //nolint:errcheck
	})
	client := api.NewClient(rec.server.URL, rec.server.Client(), store)

	env, err := api.Post[lesson](context.Background(), client, "/sessions", map[string]string{"slot": "s-1"}, nil)
	require.NoError(t, err)

	// Non-401 errors are never retried or interpreted
	assert.Equal(t, 1, rec.hitCount("/sessions"))
	require.NotNil(t, env.Error)
	assert.Equal(t, "SLOT_TAKEN", env.Error.Code)
	assert.Equal(t, "t-1", env.Error.TraceID)
}

func TestClient_MetaPagination(t *testing.T) {
	store := newStore(t)

	rec := newAPIRecorder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"l-1","title":"Algebra"},"error":null,"meta":{"nextPage":2,"total":41}}`)) //nolint:errcheck
	})
	client := api.NewClient(rec.server.URL, rec.server.Client(), store)

	env, err := api.Get[lesson](context.Background(), client, "/feed", nil)
	require.NoError(t, err)
	require.NotNil(t, env.Meta.NextPage)
	assert.Equal(t, 2, *env.Meta.NextPage)
	require.NotNil(t, env.Meta.Total)
	assert.Equal(t, 41, *env.Meta.Total)
}

func TestClient_ConcurrentRefreshesCollapse(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "expired-token")

	rec := newAPIRecorder(t, nil)
	rec.handler = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			time.Sleep(50 * time.Millisecond) // widen the race window
			w.Write([]byte(`{"data":{"accessToken":"fresh-token"},"error":null,"meta":{}}`)) //nolint:errcheck
		default:
			if r.Header.Get("Authorization") == "Bearer fresh-token" {
				w.Write([]byte(`{"data":{"id":"x","title":"ok"},"error":null,"meta":{}}`)) //nolint:errcheck
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"data":null,"error":{"code":"UNAUTHORIZED","message":"token expired"},"meta":{}}`)) //nolint:errcheck
		}
	}
	client := api.NewClient(rec.server.URL, rec.server.Client(), store)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			env, err := api.Get[lesson](context.Background(), client, "/feed", nil)
			assert.NoError(t, err)
			assert.True(t, env.Ok())
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, rec.hitCount("/auth/refresh"), "simultaneous 401s must share one refresh")
}

func TestClient_Logout(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "valid-token")

	rec := newAPIRecorder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null,"error":null,"meta":{}}`)) //nolint:errcheck
	})
	client := api.NewClient(rec.server.URL, rec.server.Client(), store)

	require.NoError(t, client.Logout(context.Background()))
	assert.Equal(t, 1, rec.hitCount("/auth/logout"))
	assert.Nil(t, store.Get(), "logout drops the local session")
}
