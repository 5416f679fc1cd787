package provisioning

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	_ "image/gif"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Format is a resize output encoding
type Format string

const (
	FormatJPEG Format = "JPEG"
	FormatPNG  Format = "PNG"
)

// ParseFormat accepts JPEG, JPG and PNG in any case
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JPEG", "JPG", "":
		return FormatJPEG, nil
	case "PNG":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Ext returns the file extension for f
func (f Format) Ext() string {
	if f == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

var sourceTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// ResizeOptions bound the output image. Zero bounds leave that axis free.
type ResizeOptions struct {
	MaxWidth  int
	MaxHeight int
	Format    Format
	Quality   int
}

// DefaultResizeOptions match the stock panorama pipeline
func DefaultResizeOptions() ResizeOptions {
	return ResizeOptions{MaxWidth: 11008, MaxHeight: 5504, Format: FormatJPEG, Quality: 100}
}

// Validate checks the target settings
func (o ResizeOptions) Validate() error {
	if o.Format != FormatJPEG && o.Format != FormatPNG {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, o.Format)
	}
	if o.MaxWidth < 0 || o.MaxHeight < 0 {
		return fmt.Errorf("negative bounds %dx%d", o.MaxWidth, o.MaxHeight)
	}
	if o.Format == FormatJPEG && (o.Quality < 1 || o.Quality > 100) {
		return fmt.Errorf("jpeg quality %d outside 1-100", o.Quality)
	}
	return nil
}

// Exceeds reports whether a width x height image is outside the bounds
func (o ResizeOptions) Exceeds(width, height int) bool {
	return (o.MaxWidth > 0 && width > o.MaxWidth) || (o.MaxHeight > 0 && height > o.MaxHeight)
}

// Resizer scales images into a cache
type Resizer struct {
	cache *Cache
}

// NewResizer writes its output into cache
func NewResizer(cache *Cache) *Resizer {
	return &Resizer{cache: cache}
}

// Resize fits src inside the bounds, preserving aspect ratio and never
// upscaling, and encodes it in the target format. Identical requests reuse
// the cached output.
func (r *Resizer) Resize(ctx context.Context, src string, opts ResizeOptions) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", &ResizeError{Source: src, Err: err}
	}

	mt, err := mimetype.DetectFile(src)
	if err != nil {
		return "", &ResizeError{Source: src, Err: err}
	}
	if !mimetype.EqualsAny(mt.String(), sourceTypes...) {
		return "", &ResizeError{Source: src, Err: fmt.Errorf("%w: %s", ErrUnsupportedSource, mt.String())}
	}

	digest, err := r.cache.HashFile(src)
	if err != nil {
		return "", &ResizeError{Source: src, Err: err}
	}
	name := "resized-" + r.cache.Key(digest,
		strconv.Itoa(opts.MaxWidth), strconv.Itoa(opts.MaxHeight),
		string(opts.Format), strconv.Itoa(opts.Quality)) + opts.Format.Ext()
	if path, ok := r.cache.Lookup(name); ok {
		return path, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, err := decode(src)
	if err != nil {
		return "", &ResizeError{Source: src, Err: err}
	}

	bounds := img.Bounds()
	width, height := fit(bounds.Dx(), bounds.Dy(), opts.MaxWidth, opts.MaxHeight)
	if width != bounds.Dx() || height != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
		img = dst
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := r.cache.Write(name, func(w io.Writer) error {
		return encode(w, img, opts)
	})
	if err != nil {
		return "", &ResizeError{Source: src, Err: err}
	}
	return path, nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	return img, nil
}

func encode(w io.Writer, img image.Image, opts ResizeOptions) error {
	switch opts.Format {
	case FormatPNG:
		return png.Encode(w, img)
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: opts.Quality})
	}
}

// fit scales width x height down into maxWidth x maxHeight
func fit(width, height, maxWidth, maxHeight int) (int, int) {
	if maxWidth <= 0 {
		maxWidth = width
	}
	if maxHeight <= 0 {
		maxHeight = height
	}
	if width <= maxWidth && height <= maxHeight {
		return width, height
	}

	scale := math.Min(float64(maxWidth)/float64(width), float64(maxHeight)/float64(height))
	w := min(maxWidth, max(1, int(math.Round(float64(width)*scale))))
	h := min(maxHeight, max(1, int(math.Round(float64(height)*scale))))
	return w, h
}
