package updater

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*CacheEntry)}
}

func (m *memCache) Load(_ context.Context, item string) (*CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[item], nil
}

func (m *memCache) Save(_ context.Context, e *CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ItemName] = e
	return nil
}

func (m *memCache) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*CacheEntry)
	return nil
}

func newVersionServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func testArgs() Args {
	return Args{
		Version:    "1.0.0",
		License:    "ABC123",
		Author:     "Sell Comet",
		WPOverride: true,
		ItemName:   "edd-stripe-pro",
		File:       "edd-stripe-pro/edd-stripe-pro.php",
	}
}

func TestUpdater_Check(t *testing.T) {
	t.Parallel()

	t.Run("SendsGetVersionAndCachesResult", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := newVersionServer(t, func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "get_version", r.PostForm.Get("edd_action"))
			assert.Equal(t, "ABC123", r.PostForm.Get("license"))
			assert.Equal(t, "edd-stripe-pro", r.PostForm.Get("item_name"))
			assert.Equal(t, "edd-stripe-pro", r.PostForm.Get("slug"))
			assert.Equal(t, "1.0.0", r.PostForm.Get("version"))
			assert.Equal(t, "https://shop.example.com", r.PostForm.Get("url"))
			assert.Equal(t, "0", r.PostForm.Get("beta"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"new_version":"1.2.0","name":"Stripe Pro","package":"https://dl.example.com/p.zip"}`))
		})

		cache := newMemCache()
		reg := NewRegistry(cache, WithSiteURL("https://shop.example.com"))
		require.NoError(t, reg.Register(context.Background(), server.URL, testArgs()))

		u, ok := reg.Get("edd-stripe-pro")
		require.True(t, ok)

		entry, err := u.Check(context.Background())
		require.NoError(t, err)
		assert.True(t, entry.UpdateAvailable)
		assert.Equal(t, "1.2.0", entry.Info.NewVersion)
		assert.Equal(t, "Stripe Pro", entry.Info.Name)

		_, err = u.Check(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(1), hits.Load(), "second check must be served from cache")

		require.NoError(t, reg.Invalidate(context.Background()))
		_, err = u.Check(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("RetriesServerErrors", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := newVersionServer(t, func(w http.ResponseWriter, _ *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"new_version":"1.0.0"}`))
		})

		reg := NewRegistry(nil, WithRetryInterval(time.Millisecond))
		require.NoError(t, reg.Register(context.Background(), server.URL, testArgs()))
		u, _ := reg.Get("edd-stripe-pro")

		entry, err := u.Check(context.Background())
		require.NoError(t, err)
		assert.False(t, entry.UpdateAvailable)
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("DoesNotRetryClientErrors", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := newVersionServer(t, func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusForbidden)
		})

		reg := NewRegistry(nil, WithRetryInterval(time.Millisecond))
		require.NoError(t, reg.Register(context.Background(), server.URL, testArgs()))
		u, _ := reg.Get("edd-stripe-pro")

		_, err := u.Check(context.Background())
		require.Error(t, err)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
		assert.False(t, statusErr.Temporary())
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("MalformedBodyIsNotRetried", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := newVersionServer(t, func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			_, _ = w.Write([]byte("<html>maintenance</html>"))
		})

		reg := NewRegistry(nil, WithRetryInterval(time.Millisecond))
		require.NoError(t, reg.Register(context.Background(), server.URL, testArgs()))
		u, _ := reg.Get("edd-stripe-pro")

		_, err := u.Check(context.Background())
		require.Error(t, err)
		require.ErrorIs(t, err, errMalformedAnswer)
		assert.Equal(t, int32(1), hits.Load())
	})
}

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	assert.True(t, shouldRetry(errors.New("connection reset")))
	assert.True(t, shouldRetry(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, shouldRetry(fmt.Errorf("wrapped: %w", &StatusError{StatusCode: http.StatusBadGateway})))
	assert.False(t, shouldRetry(&StatusError{StatusCode: http.StatusNotFound}))
	assert.False(t, shouldRetry(fmt.Errorf("%w: eof", errMalformedAnswer)))
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	ctx := context.Background()

	require.Error(t, reg.Register(ctx, "https://example.com", Args{}))
	require.Error(t, reg.Register(ctx, "", testArgs()))

	require.NoError(t, reg.Register(ctx, "https://example.com", testArgs()))
	updated := testArgs()
	updated.License = ""
	require.NoError(t, reg.Register(ctx, "https://example.com", updated))

	other := testArgs()
	other.ItemName = "edd-pdf-invoices"
	require.NoError(t, reg.Register(ctx, "https://example.com", other))

	all := reg.Updaters()
	require.Len(t, all, 2)
	assert.Equal(t, "edd-pdf-invoices", all[0].Args().ItemName)
	assert.Empty(t, all[1].Args().License)
}

func TestArgs_Slug(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "edd-stripe-pro", testArgs().Slug())
	assert.Equal(t, "edd-pdf", Args{ItemName: "edd-pdf"}.Slug())
}

func TestIsNewer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		current, target string
		want            bool
	}{
		{"1.0.0", "1.2.0", true},
		{"v1.2.0", "1.2.0", false},
		{"1.2", "1.2.1", true},
		{"2.0.0", "1.9.9", false},
		{"1.0.0", "", false},
		{"dev", "1.0.0", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsNewer(tt.current, tt.target), "%s -> %s", tt.current, tt.target)
	}
}
