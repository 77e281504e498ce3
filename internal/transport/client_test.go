package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	t.Run("returns body on 200", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/areas/1000", r.URL.Path)
			w.Write([]byte(`{"p1":["r1","c1","e1",null,1000]}`))
		})
		body, err := NewHTTPFetcher(srv.URL+"/", nil).Fetch(context.Background(), "/areas/1000")
		require.NoError(t, err)
		assert.JSONEq(t, `{"p1":["r1","c1","e1",null,1000]}`, string(body))
	})

	t.Run("non-2xx is an HTTPError", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no such year", http.StatusNotFound)
		})
		_, err := NewHTTPFetcher(srv.URL, nil).Fetch(context.Background(), "/areas/99999")
		var herr *HTTPError
		require.ErrorAs(t, err, &herr)
		assert.Equal(t, http.StatusNotFound, herr.StatusCode)
		assert.False(t, IsCanceled(err))
	})

	t.Run("already canceled context never dials", func(t *testing.T) {
		t.Parallel()
		calls := 0
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) { calls++ })
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewHTTPFetcher(srv.URL, nil).Fetch(ctx, "/metadata")
		assert.ErrorIs(t, err, ErrCanceled)
		assert.Zero(t, calls)
	})

	t.Run("cancel in flight is ErrCanceled", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		defer close(release)
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		_, err := NewHTTPFetcher(srv.URL, nil).Fetch(ctx, "/areas/1")
		assert.True(t, IsCanceled(err), "got %v", err)
	})

	t.Run("connection failure is ErrNetwork", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		_, err := NewHTTPFetcher(url, nil).Fetch(context.Background(), "/metadata")
		assert.ErrorIs(t, err, ErrNetwork)
		assert.False(t, IsCanceled(err))
	})
}

type staticFetcher struct {
	mu    sync.Mutex
	body  []byte
	err   error
	calls int
}

func (f *staticFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.body, f.err
}

func TestClientGet(t *testing.T) {
	t.Parallel()

	var out map[string]int
	c := NewClient(&staticFetcher{body: []byte(`{"a":1}`)})
	require.NoError(t, c.Get(context.Background(), "/x", &out))
	assert.Equal(t, map[string]int{"a": 1}, out)

	err := NewClient(&staticFetcher{body: []byte(`{`)}).Get(context.Background(), "/x", &out)
	assert.ErrorContains(t, err, "decode /x")

	err = NewClient(&staticFetcher{err: ErrNetwork}).Get(context.Background(), "/x", &out)
	assert.ErrorIs(t, err, ErrNetwork)
}

type fakeKV struct {
	data   map[string]string
	getErr error
	sets   int
}

func (f *fakeKV) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.sets++
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func TestRedisCache(t *testing.T) {
	t.Parallel()

	t.Run("miss populates then hit skips upstream", func(t *testing.T) {
		t.Parallel()
		up := &staticFetcher{body: []byte(`[1,2]`)}
		kv := &fakeKV{data: map[string]string{}}
		c := NewRedisCache(up, kv, time.Minute)

		b, err := c.Fetch(context.Background(), "/areas/5")
		require.NoError(t, err)
		assert.Equal(t, `[1,2]`, string(b))
		b, err = c.Fetch(context.Background(), "/areas/5")
		require.NoError(t, err)
		assert.Equal(t, `[1,2]`, string(b))
		assert.Equal(t, 1, up.calls)
		assert.Equal(t, 1, kv.sets)
	})

	t.Run("redis failure falls through", func(t *testing.T) {
		t.Parallel()
		up := &staticFetcher{body: []byte(`{}`)}
		kv := &fakeKV{data: map[string]string{}, getErr: errors.New("connection refused")}
		b, err := NewRedisCache(up, kv, time.Minute).Fetch(context.Background(), "/metadata")
		require.NoError(t, err)
		assert.Equal(t, `{}`, string(b))
		assert.Equal(t, 1, up.calls)
	})

	t.Run("upstream errors are not cached", func(t *testing.T) {
		t.Parallel()
		up := &staticFetcher{err: &HTTPError{Path: "/x", StatusCode: 500}}
		kv := &fakeKV{data: map[string]string{}}
		_, err := NewRedisCache(up, kv, time.Minute).Fetch(context.Background(), "/x")
		require.Error(t, err)
		assert.Zero(t, kv.sets)
	})
}

func TestOpenRedisEmptyAddr(t *testing.T) {
	assert.Nil(t, OpenRedis("", "", 0))
}
