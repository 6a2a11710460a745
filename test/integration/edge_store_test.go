//go:build cgo

package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/edgegate/internal/config"
	"github.com/namelens/edgegate/internal/core/edge"
	"github.com/namelens/edgegate/internal/core/ratelimit"
	"github.com/namelens/edgegate/internal/core/store"
	"github.com/namelens/edgegate/internal/server"
)

func openTestStore(t *testing.T, path string) *store.Store {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, config.StoreConfig{Driver: "libsql", Path: path})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newStoreBackedServer(t *testing.T, db *store.Store) *server.Server {
	t.Helper()
	opts := edge.DefaultOptions()
	opts.RateLimitPolicy = ratelimit.Policy{Limit: 2, Window: time.Hour}
	opts.Limiter = &ratelimit.StoreLimiter{Store: db}

	router, err := edge.New(opts)
	require.NoError(t, err)

	srv, err := server.New("127.0.0.1", 0, server.Deps{Edge: router, Contact: db})
	require.NoError(t, err)
	return srv
}

func postContact(srv *server.Server, client string) *httptest.ResponseRecorder {
	form := url.Values{"name": {"Grace"}, "email": {"grace@example.com"}, "message": {"Quote please"}}
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-For", client)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStoreBackedRateLimitSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edgegate.db")
	db := openTestStore(t, path)

	first := newStoreBackedServer(t, db)
	for i := 1; i <= 3; i++ {
		require.Equal(t, http.StatusOK, postContact(first, "203.0.113.9").Code, "request %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, postContact(first, "203.0.113.9").Code)

	// A second instance over the same database sees the same window
	second := newStoreBackedServer(t, db)
	assert.Equal(t, http.StatusTooManyRequests, postContact(second, "203.0.113.9").Code)
	assert.Equal(t, http.StatusOK, postContact(second, "198.51.100.7").Code)

	subs, err := db.ListContactSubmissions(context.Background(), store.ContactQuery{Email: "grace@example.com"})
	require.NoError(t, err)
	assert.Len(t, subs, 4)

	windows, err := db.CountRateLimits(context.Background(), store.RateLimitQuery{All: true})
	require.NoError(t, err)
	assert.Equal(t, 2, windows)
}

func TestStoreBackedRateLimitIgnoresOtherMethods(t *testing.T) {
	db := openTestStore(t, filepath.Join(t.TempDir(), "edgegate.db"))
	srv := newStoreBackedServer(t, db)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/contact", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.10")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
	}

	windows, err := db.CountRateLimits(context.Background(), store.RateLimitQuery{All: true})
	require.NoError(t, err)
	assert.Zero(t, windows)
}
