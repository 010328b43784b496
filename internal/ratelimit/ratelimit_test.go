package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSlidingWindow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	start := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		res, err := store.Allow(ctx, "k", 3, time.Minute, start.Add(time.Duration(i)*10*time.Second))
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := store.Allow(ctx, "k", 3, time.Minute, start.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, start.Add(time.Minute), res.Reset)

	// Another key is independent.
	res, _ = store.Allow(ctx, "other", 3, time.Minute, start.Add(30*time.Second))
	assert.True(t, res.Allowed)

	// The first hit leaves the window, freeing one slot.
	res, _ = store.Allow(ctx, "k", 3, time.Minute, start.Add(61*time.Second))
	assert.True(t, res.Allowed)
	res, _ = store.Allow(ctx, "k", 3, time.Minute, start.Add(62*time.Second))
	assert.False(t, res.Allowed)
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	for i := 0; i < sweepEvery-1; i++ {
		_, _ = store.Allow(context.Background(), strconv.Itoa(i), 1, time.Second, now)
	}
	_, _ = store.Allow(context.Background(), "late", 1, time.Second, now.Add(time.Hour))
	assert.Len(t, store.hits, 1)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")

	assert.Equal(t, "203.0.113.7", ClientIP(r, false))
	assert.Equal(t, "10.0.0.1", ClientIP(r, true))

	r.Header.Set("X-Forwarded-For", "198.51.100.1, ")
	assert.Equal(t, "198.51.100.1", ClientIP(r, true))

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", ClientIP(r, true))
}

func TestMiddleware(t *testing.T) {
	var limited []string
	limiter := New("general", NewMemoryStore(), 100, 15*time.Minute)
	handler := limiter.Middleware(MiddlewareOptions{
		OnLimited: func(name string) { limited = append(limited, name) },
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(remote string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/recipes", nil)
		r.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec
	}

	t.Run("101stRequestRejected", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			rec := do("203.0.113.7:4000")
			require.Equal(t, http.StatusNoContent, rec.Code, "request %d", i+1)
		}
		rec := do("203.0.113.7:4001")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.JSONEq(t, `{"error":"Too many requests, please try again later."}`, rec.Body.String())
		assert.Equal(t, []string{"general"}, limited)

		// Other clients are unaffected.
		assert.Equal(t, http.StatusNoContent, do("203.0.113.8:4000").Code)
	})

	t.Run("LoopbackExempt", func(t *testing.T) {
		for i := 0; i < 150; i++ {
			require.Equal(t, http.StatusNoContent, do("127.0.0.1:5000").Code)
		}
		rec := do("[::1]:5000")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	})
}

func TestMiddlewareForwardedLoopback(t *testing.T) {
	limiter := New("general", NewMemoryStore(), 1, time.Minute)
	handler := limiter.Middleware(MiddlewareOptions{TrustProxy: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(remote, forwarded string) int {
		r := httptest.NewRequest(http.MethodGet, "/recipes", nil)
		r.RemoteAddr = remote
		if forwarded != "" {
			r.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec.Code
	}

	t.Run("RemoteClaimingLoopback", func(t *testing.T) {
		var codes []int
		for i := 0; i < 3; i++ {
			codes = append(codes, do("203.0.113.5:4000", "127.0.0.1"))
		}
		assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	})

	t.Run("ClientBehindLocalProxy", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, do("127.0.0.1:4000", "127.0.0.1, 198.51.100.9"))
		assert.Equal(t, http.StatusTooManyRequests, do("127.0.0.1:4000", "127.0.0.1, 198.51.100.9"))
	})

	t.Run("LocalRequestThroughLocalProxy", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusNoContent, do("127.0.0.1:4000", "127.0.0.1"))
		}
		assert.Equal(t, http.StatusNoContent, do("[::1]:4000", ""))
	})
}

// Runs against a real server when REDIS_URL is set, e.g. redis://localhost:6379/15.
func TestRedisStore(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	store, err := NewRedisStoreFromURL(ctx, redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	key := "ratelimit:test:" + uuid.NewString()
	t.Cleanup(func() { store.client.Del(context.Background(), key) })

	now := time.Now()
	for i := 0; i < 2; i++ {
		res, err := store.Allow(ctx, key, 2, time.Minute, now.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1-i, res.Remaining)
	}

	res, err := store.Allow(ctx, key, 2, time.Minute, now.Add(2*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	card, err := store.client.ZCard(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), card)
}
