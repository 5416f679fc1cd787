package sandbox

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrScriptTimeout = errors.New("sandbox script timeout exceeded")
	ErrNotLoaded     = errors.New("sandbox has no page loaded")
	ErrNoElement     = errors.New("element not found")
	ErrNotCallable   = errors.New("global is not a function")
)

// Config defines sandbox configuration
type Config struct {
	Timeout          time.Duration // Per script execution timeout
	MaxCallStackSize int           // goja call stack limit
	EnableConsole    bool          // Allow console.log/warn/error
	LibraryURL       string        // Script source that provides the rendering capability
	Capability       bool          // Install the capability when LibraryURL is requested
}

// DefaultConfig returns the defaults used by the headless surface
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxCallStackSize: 1024,
		EnableConsole:    true,
		LibraryURL:       "https://cdnjs.cloudflare.com/ajax/libs/marzipano/0.10.2/marzipano.js",
		Capability:       true,
	}
}

// Poster receives raw messages from window.ReactNativeWebView.postMessage
type Poster interface {
	Post(raw string) bool
}

// PosterFunc adapts a function to Poster
type PosterFunc func(raw string) bool

// Post implements Poster
func (f PosterFunc) Post(raw string) bool { return f(raw) }

// Page is a document to instantiate. Globals are bound before any script runs.
type Page struct {
	HTML    string
	Globals map[string]any
	Poster  Poster
}

// Result holds what a page load produced
type Result struct {
	Console    []LogEntry    // Console output
	DOMChanges []DOMChange   // DOM modifications
	Scenes     []Scene       // Scenes switched to
	Errors     []error       // Uncaught script errors, one per failing script
	Duration   time.Duration // Execution time
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, warn, error
	Message string    // Log message
	Time    time.Time // Timestamp
}

// DOMChange represents a DOM modification
type DOMChange struct {
	Type     string // set_style, set_text, set_attribute
	Target   string // Element id, or tag name when the element has none
	Property string // Property name
	Value    string // New value
}

// Level is one resolution level of an equirectangular geometry
type Level struct {
	Width int `json:"width"`
}

// Scene is what the capability was asked to display
type Scene struct {
	Element       string  `json:"element"`
	Source        string  `json:"source"`
	Levels        []Level `json:"levels"`
	MaxResolution float64 `json:"maxResolution"`
	MaxFOV        float64 `json:"maxFov"`
	PinFirstLevel bool    `json:"pinFirstLevel"`
}

// Validate rejects scenes a real renderer could not build
func (s Scene) Validate() error {
	var problems []string
	if s.Source == "" {
		problems = append(problems, "image source is empty")
	}
	if len(s.Levels) == 0 {
		problems = append(problems, "geometry has no levels")
	}
	for i, l := range s.Levels {
		if l.Width <= 0 {
			problems = append(problems, fmt.Sprintf("level %d width must be positive", i))
		}
	}
	if s.MaxResolution <= 0 {
		problems = append(problems, "max resolution must be positive")
	}
	if s.MaxFOV <= 0 || s.MaxFOV >= math.Pi {
		problems = append(problems, "max field of view must be within (0, pi)")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ElementState is a snapshot of one element
type ElementState struct {
	ID      string
	Tag     string
	Text    string
	Style   map[string]string
	Visible bool
}
