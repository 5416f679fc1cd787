package document

import (
	"errors"
	"fmt"
	"strings"
)

// LoadMode selects how rendering is started inside the sandbox
type LoadMode string

const (
	// LoadManual waits for a click on the placeholder or button, or a host trigger
	LoadManual LoadMode = "manual"
	// LoadAuto calls loadImageUrl as soon as the window load event fires
	LoadAuto LoadMode = "auto"
)

// DefaultLibraryURL is the Marzipano build the document loads
const DefaultLibraryURL = "https://cdnjs.cloudflare.com/ajax/libs/marzipano/0.10.2/marzipano.js"

// ParseLoadMode converts a configuration string into a LoadMode
func ParseLoadMode(s string) (LoadMode, error) {
	switch mode := LoadMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case LoadManual, LoadAuto:
		return mode, nil
	case "":
		return LoadManual, nil
	default:
		return "", fmt.Errorf("unknown load mode %q", s)
	}
}

// Options parameterize the static viewer document
type Options struct {
	LibraryURL    string
	GeometryWidth int
	MaxResolution int
	MaxFOVDegrees float64
	PinFirstLevel bool
	LoadMode      LoadMode
	Title         string
	Placeholder   string
	ButtonLabel   string
}

// DefaultOptions mirrors the stock viewer configuration
func DefaultOptions() Options {
	return Options{
		LibraryURL:    DefaultLibraryURL,
		GeometryWidth: 11008,
		MaxResolution: 4096,
		MaxFOVDegrees: 90,
		PinFirstLevel: true,
		LoadMode:      LoadManual,
		Title:         "360 Viewer",
		Placeholder:   "Click the button to view the 360 image",
		ButtonLabel:   "Load 360 Image",
	}
}

// Validate rejects options that would produce a broken scene
func (o Options) Validate() error {
	var errs []error
	if strings.TrimSpace(o.LibraryURL) == "" {
		errs = append(errs, errors.New("library URL is required"))
	} else if !strings.HasPrefix(o.LibraryURL, "https://") && !strings.HasPrefix(o.LibraryURL, "http://") && !strings.HasPrefix(o.LibraryURL, "/") {
		errs = append(errs, fmt.Errorf("library URL %q must be http(s) or host-relative", o.LibraryURL))
	}
	if o.GeometryWidth <= 0 {
		errs = append(errs, fmt.Errorf("geometry width must be positive, got %d", o.GeometryWidth))
	}
	if o.MaxResolution <= 0 {
		errs = append(errs, fmt.Errorf("max resolution must be positive, got %d", o.MaxResolution))
	}
	if o.MaxFOVDegrees <= 0 || o.MaxFOVDegrees >= 180 {
		errs = append(errs, fmt.Errorf("max field of view must be within (0, 180) degrees, got %g", o.MaxFOVDegrees))
	}
	if o.LoadMode != LoadManual && o.LoadMode != LoadAuto {
		errs = append(errs, fmt.Errorf("unknown load mode %q", o.LoadMode))
	}
	return errors.Join(errs...)
}
