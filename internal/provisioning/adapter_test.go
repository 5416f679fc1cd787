package provisioning

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineRequired(t *testing.T) {
	p := newTestPipeline(t, nil)
	assert.True(t, p.Required("/sdcard/pano.jpg"))
	assert.True(t, p.Required("file:///sdcard/pano.jpg"))
	assert.False(t, p.Required("https://example.com/pano.jpg"))
	assert.False(t, p.Required("data:image/png;base64,AAAA"))
	assert.False(t, p.Required(""))

	p = newTestPipeline(t, func(o *Options) { o.FetchRemote = true })
	assert.True(t, p.Required("https://example.com/pano.jpg"))

	p = newTestPipeline(t, func(o *Options) { o.Enabled = false })
	assert.False(t, p.Required("/sdcard/pano.jpg"))
}

func TestResolveServesLocalFile(t *testing.T) {
	a := newTestPipeline(t, nil).NewAdapter()
	defer a.Stop(context.Background())

	src := writeJPEG(t, t.TempDir(), "pano.jpg", 64, 32)
	res, err := a.Resolve(context.Background(), src)
	require.NoError(t, err)

	assert.True(t, res.Served)
	assert.False(t, res.Resized)
	assert.Equal(t, 64, res.Width)
	assert.Equal(t, src, res.Original)
	require.NotNil(t, a.Handle())
	assert.Equal(t, a.Handle().AssetURL, res.URL)

	// reachable as soon as Resolve returns
	resp, err := http.Get(res.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestResolveResizesOversizedSource(t *testing.T) {
	a := newTestPipeline(t, func(o *Options) {
		o.Resize = ResizeOptions{MaxWidth: 40, MaxHeight: 20, Format: FormatJPEG, Quality: 90}
	}).NewAdapter()
	defer a.Stop(context.Background())

	src := writePNG(t, t.TempDir(), "pano.png", 200, 100)
	res, err := a.Resolve(context.Background(), src)
	require.NoError(t, err)

	assert.True(t, res.Resized)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 20, res.Height)
	assert.True(t, res.Served)
}

func TestResolveResizesAboveByteThreshold(t *testing.T) {
	a := newTestPipeline(t, func(o *Options) {
		o.ResizeAboveBytes = 1
		o.Serve = false
		o.AllowFileScheme = true
	}).NewAdapter()

	src := writePNG(t, t.TempDir(), "pano.png", 20, 10)
	res, err := a.Resolve(context.Background(), src)
	require.NoError(t, err)

	assert.True(t, res.Resized)
	assert.Equal(t, ".jpg", filepath.Ext(res.URL))
	assert.Contains(t, res.URL, "file://")
}

func TestResolveFallbacks(t *testing.T) {
	src := writeJPEG(t, t.TempDir(), "pano.jpg", 8, 4)
	unbindable := func(o *Options) {
		o.Server.BindHost = "203.0.113.7"
		o.Server.Attempts = 1
	}

	a := newTestPipeline(t, unbindable).NewAdapter()
	_, err := a.Resolve(context.Background(), src)
	assert.ErrorIs(t, err, ErrUnusableReference)
	assert.Nil(t, a.Handle())

	a = newTestPipeline(t, func(o *Options) {
		unbindable(o)
		o.AllowFileScheme = true
	}).NewAdapter()
	res, err := a.Resolve(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, FileURL(src), res.URL)
	assert.Equal(t, 8, res.Width)

	a = newTestPipeline(t, func(o *Options) { o.AllowFileScheme = true }).NewAdapter()
	_, err = a.Resolve(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	assert.ErrorIs(t, err, ErrUnusableReference)
}

func TestResolveRemote(t *testing.T) {
	src := writeJPEG(t, t.TempDir(), "pano.jpg", 32, 16)
	payload, err := os.ReadFile(src)
	require.NoError(t, err)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer upstream.Close()

	// without fetching, remote references pass through untouched
	a := newTestPipeline(t, nil).NewAdapter()
	res, err := a.Resolve(context.Background(), upstream.URL+"/pano.jpg")
	require.NoError(t, err)
	assert.Equal(t, upstream.URL+"/pano.jpg", res.URL)
	assert.False(t, res.Served)

	a = newTestPipeline(t, func(o *Options) { o.FetchRemote = true }).NewAdapter()
	defer a.Stop(context.Background())

	res, err = a.Resolve(context.Background(), upstream.URL+"/pano.jpg")
	require.NoError(t, err)
	assert.True(t, res.Fetched)
	assert.True(t, res.Served)
	assert.Equal(t, 32, res.Width)
	assert.NotEqual(t, upstream.URL+"/pano.jpg", res.URL)

	res, err = a.Resolve(context.Background(), upstream.URL+"/gone.jpg")
	require.NoError(t, err)
	assert.False(t, res.Fetched)
	assert.Equal(t, upstream.URL+"/gone.jpg", res.URL)
}

func TestResolveCancelled(t *testing.T) {
	a := newTestPipeline(t, nil).NewAdapter()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Resolve(ctx, writeJPEG(t, t.TempDir(), "pano.jpg", 4, 2))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, a.Handle())
}

func TestAdapterServeTwiceThenStop(t *testing.T) {
	a := newTestPipeline(t, nil).NewAdapter()
	dir := t.TempDir()

	first, err := a.Serve(context.Background(), writeJPEG(t, dir, "a.jpg", 2, 2))
	require.NoError(t, err)
	firstHandle := a.Handle()

	second, err := a.Serve(context.Background(), "file://"+writeJPEG(t, dir, "b.jpg", 2, 2))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.False(t, firstHandle.Running())
	assert.True(t, a.Handle().Running())

	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, a.Stop(context.Background()))
	assert.Nil(t, a.Handle())
}

func TestAdapterResizeRejectsRemote(t *testing.T) {
	a := newTestPipeline(t, nil).NewAdapter()
	_, err := a.Resize(context.Background(), "https://example.com/pano.jpg", DefaultResizeOptions())
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}
