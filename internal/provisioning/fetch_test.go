package provisioning

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/photosphere/internal/infrastructure/resilience"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	return NewFetcher(cache, testOptions(t).Fetcher, nil)
}

func TestFetchDownloadsOnce(t *testing.T) {
	src := writeJPEG(t, t.TempDir(), "pano.jpg", 16, 8)
	payload, err := os.ReadFile(src)
	require.NoError(t, err)

	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "photosphere-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer upstream.Close()

	f := newTestFetcher(t)
	path, err := f.Fetch(context.Background(), upstream.URL+"/images/pano.JPG?size=full")
	require.NoError(t, err)
	assert.Contains(t, path, ".jpg")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	again, err := f.Fetch(context.Background(), upstream.URL+"/images/pano.JPG?size=full")
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchStatusErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.jpg":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer upstream.Close()

	f := newTestFetcher(t)

	_, err := f.Fetch(context.Background(), upstream.URL+"/missing.jpg")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.Status)
	assert.True(t, fe.ClientError())
	assert.Equal(t, uint32(0), f.Breaker().Counts().TotalFailures, "4xx does not count against upstream")

	_, err = f.Fetch(context.Background(), upstream.URL+"/broken.jpg")
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusBadGateway, fe.Status)
	assert.Equal(t, uint32(1), f.Breaker().Counts().TotalFailures)
}

func TestFetchOpensBreaker(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	f := newTestFetcher(t)
	for i := 0; i < 5; i++ {
		_, err := f.Fetch(context.Background(), upstream.URL+"/pano.jpg")
		require.Error(t, err)
	}

	assert.Equal(t, resilience.StateOpen, f.Breaker().State())
	_, err := f.Fetch(context.Background(), upstream.URL+"/pano.jpg")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestSourceExt(t *testing.T) {
	assert.Equal(t, ".webp", sourceExt("https://x/y.WEBP"))
	assert.Equal(t, ".img", sourceExt("https://x/y"))
	assert.Equal(t, ".img", sourceExt("https://x/y.exe"))
}
