package provisioning

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charlievieth/fastwalk"
)

// Cache is a content-addressed directory for fetched and resized assets
type Cache struct {
	dir string
}

// NewCache creates dir if needed
func NewCache(dir string) (*Cache, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "photosphere-cache")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root
func (c *Cache) Dir() string {
	return c.dir
}

// Key derives a stable name fragment from parts
func (c *Cache) Key(parts ...string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(parts, "\x00")))
}

// HashFile digests a file's content
func (c *Cache) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	d := xxhash.New()
	if _, err := io.Copy(d, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", d.Sum64()), nil
}

// Path returns the location of name inside the cache
func (c *Cache) Path(name string) string {
	return filepath.Join(c.dir, name)
}

// Lookup returns the path of name if it is already cached
func (c *Cache) Lookup(name string) (string, bool) {
	path := c.Path(name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return "", false
	}
	return path, true
}

// Write stores name atomically; write receives a temp file
func (c *Cache) Write(name string, write func(w io.Writer) error) (string, error) {
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	path := c.Path(name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// Prune removes cached files older than maxAge and returns how many went
func (c *Cache) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	var removed atomic.Int64

	err := fastwalk.Walk(&fastwalk.Config{}, c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) && os.Remove(path) == nil {
			removed.Add(1)
		}
		return nil
	})
	return int(removed.Load()), err
}
