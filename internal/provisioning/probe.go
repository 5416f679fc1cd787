package provisioning

import (
	"fmt"
	"image"
	"os"
)

// Dimensions of a decoded image header
type Dimensions struct {
	Width  int
	Height int
}

// Probe reads only the image header of path
func Probe(path string) (Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dimensions{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}
