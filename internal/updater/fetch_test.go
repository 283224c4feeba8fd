package updater

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noWait() backoff.BackOff { return &backoff.ZeroBackOff{} }

func TestFetcher_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, time.Second, 0)
	body, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(body))
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, time.Second, 2)
	f.Backoff = noWait
	body, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, time.Second, 1)
	f.Backoff = noWait
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetcher_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, time.Second, 5)
	f.Backoff = noWait
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcher_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	require.NoError(t, os.WriteFile(path, []byte("<Evts/>"), 0o644))

	body, err := NewFetcher("file://"+path, time.Second, 0).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<Evts/>", string(body))

	_, err = NewFetcher("file://"+path+".missing", time.Second, 0).Fetch(context.Background())
	assert.Error(t, err)
}

// hungServer accepts requests and answers none of them while hang is set.
func hungServer(t *testing.T, body string) (*httptest.Server, *atomic.Bool) {
	t.Helper()
	var hang atomic.Bool
	hang.Store(true)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hang.Load() {
			select {
			case <-r.Context().Done():
			case <-release:
			}
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv, &hang
}

func TestFetcher_TimesOutOnHungServer(t *testing.T) {
	srv, _ := hungServer(t, "")

	start := time.Now()
	_, err := NewFetcher(srv.URL, 200*time.Millisecond, 0).Fetch(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
	assert.Less(t, elapsed, 2*time.Second)
}

func TestFetcher_RejectsOversizedFeed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(strings.Repeat("x", 33)))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, time.Second, 3)
	f.Backoff = noWait
	f.MaxBytes = 32
	_, err := f.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrFeedTooLarge)
	assert.Equal(t, int32(1), calls.Load(), "size errors are not retried")

	f.MaxBytes = 33
	body, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, body, 33)
}
