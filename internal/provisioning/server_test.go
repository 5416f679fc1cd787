package provisioning

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func refused(port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 200*time.Millisecond)
	if err != nil {
		return true
	}
	conn.Close()
	return false
}

func TestServerStopWithoutListener(t *testing.T) {
	s := NewServer(testServerOptions(), nil, nil)
	assert.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
	assert.Nil(t, s.Handle())
}

func TestServerServesFile(t *testing.T) {
	s := NewServer(testServerOptions(), nil, nil)
	defer s.Stop(context.Background())

	src := writeJPEG(t, t.TempDir(), "pano one.jpg", 8, 4)
	want, err := os.ReadFile(src)
	require.NoError(t, err)

	h, err := s.Serve(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, h.Running())
	assert.GreaterOrEqual(t, h.Port, 20000)
	assert.Less(t, h.Port, 40000)
	assert.Equal(t, h.BaseURL+"/pano_one.jpg", h.AssetURL)

	resp, body := get(t, h.AssetURL, map[string]string{"Origin": "http://sandbox.local"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, want, body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServerServeTwiceKeepsOneListener(t *testing.T) {
	s := NewServer(testServerOptions(), nil, nil)
	defer s.Stop(context.Background())
	dir := t.TempDir()

	first, err := s.Serve(context.Background(), writeJPEG(t, dir, "a.jpg", 4, 2))
	require.NoError(t, err)
	second, err := s.Serve(context.Background(), writeJPEG(t, dir, "b.jpg", 4, 2))
	require.NoError(t, err)

	assert.False(t, first.Running())
	assert.True(t, second.Running())
	assert.Same(t, second, s.Handle())
	if first.Port != second.Port {
		assert.True(t, refused(first.Port), "first listener must be released")
	}

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, second.Running())
	assert.True(t, refused(second.Port))
	assert.NoError(t, s.Stop(context.Background()))
}

func TestServerServesDirectory(t *testing.T) {
	s := NewServer(testServerOptions(), nil, nil)
	defer s.Stop(context.Background())

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tiles"), 0o755))
	writeJPEG(t, filepath.Join(dir, "tiles"), "0.JPG", 4, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("x"), 0o644))

	h, err := s.Serve(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, h.BaseURL+"/", h.AssetURL)

	resp, _ := get(t, h.BaseURL+"/tiles/0.JPG", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, h.BaseURL+"/secret.txt", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, h.BaseURL+"/../../etc/passwd", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerErrors(t *testing.T) {
	s := NewServer(testServerOptions(), nil, nil)

	_, err := s.Serve(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	var se *ServeError
	require.ErrorAs(t, err, &se)
	assert.Nil(t, s.Handle())

	opts := testServerOptions()
	opts.BindHost = "203.0.113.7" // not a local address
	opts.Attempts = 2
	s = NewServer(opts, nil, nil)
	_, err = s.Serve(context.Background(), writeJPEG(t, t.TempDir(), "a.jpg", 2, 2))
	assert.ErrorIs(t, err, ErrNoListener)
}

func TestRouteName(t *testing.T) {
	assert.Equal(t, "pano_1_.jpg", routeName("pano(1).jpg"))
	assert.Equal(t, "_x", routeName(":x"))
	assert.Equal(t, "asset", routeName(""))
}
