package provisioning

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: uint8(x), A: 255})
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func writeJPEG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 80}))
	return path
}

func testServerOptions() ServerOptions {
	opts := DefaultServerOptions()
	opts.PortBase = 20000
	opts.PortSpan = 20000
	return opts
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Enabled: true,
		Resize:  DefaultResizeOptions(),
		Serve:   true,
		Server:  testServerOptions(),
		Fetcher: FetcherOptions{
			Timeout:   5 * time.Second,
			RetryMax:  0,
			UserAgent: "photosphere-test",
		},
		CacheDir: t.TempDir(),
	}
}

func newTestPipeline(t *testing.T, mutate func(*Options)) *Pipeline {
	t.Helper()
	opts := testOptions(t)
	if mutate != nil {
		mutate(&opts)
	}
	p, err := NewPipeline(opts, nil, nil)
	require.NoError(t, err)
	return p
}
