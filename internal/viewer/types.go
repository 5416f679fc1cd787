package viewer

import (
	"context"
	"errors"
	"time"

	"github.com/GriffinCanCode/photosphere/internal/provisioning"
	"github.com/GriffinCanCode/photosphere/internal/shared/id"
	"github.com/GriffinCanCode/photosphere/internal/viewer/bridge"
)

var (
	// ErrUnmounted is returned by operations on a torn down screen
	ErrUnmounted = errors.New("screen unmounted")
	// ErrNotRendering is returned when a load is requested before the sandbox is up
	ErrNotRendering = errors.New("screen is not rendering")
	// ErrScreenNotFound is returned by the manager for unknown screens
	ErrScreenNotFound = errors.New("screen not found")
	// ErrNoSurface is returned when a controller is built without a surface
	ErrNoSurface = errors.New("viewer surface is required")
)

// Item is what the caller hands a screen
type Item struct {
	FileURL string `json:"fileUrl"`
	Name    string `json:"name"`
}

// Navigator receives the host-visible screen title
type Navigator interface {
	SetTitle(title string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(title string)

// SetTitle calls f
func (f NavigatorFunc) SetTitle(title string) { f(title) }

// Provisioner decides whether a reference needs provisioning and opens a
// fresh provisioning lifecycle per session. *provisioning.Pipeline
// satisfies it.
type Provisioner interface {
	Required(ref string) bool
	Open() provisioning.Provision
}

// Mount is everything a surface needs to instantiate one session
type Mount struct {
	SessionID id.SessionID
	Inbound   *bridge.Inbound
	Outbound  *bridge.Outbound
	Title     string
}

// Surface instantiates the sandboxed document for a session
type Surface interface {
	Name() string
	Mount(ctx context.Context, m Mount) (Instance, error)
}

// Instance is one live sandbox
type Instance interface {
	// Trigger invokes loadImageUrl in the sandbox
	Trigger(ctx context.Context) error
	Close() error
}

// View is what the screen presents
type View string

const (
	ViewIndicator View = "indicator"
	ViewSandbox   View = "sandbox"
)

// Snapshot is the observable state of a screen
type Snapshot struct {
	ScreenID    id.ScreenID  `json:"screenId"`
	SessionID   id.SessionID `json:"sessionId,omitempty"`
	Phase       Phase        `json:"phase"`
	Reference   string       `json:"reference"`
	ResolvedURL string       `json:"resolvedUrl,omitempty"`
	Width       int          `json:"width,omitempty"`
	Title       string       `json:"title,omitempty"`
	View        View         `json:"view"`
	Loading     bool         `json:"loading"`
	Loaded      bool         `json:"loaded"`
	Diagnostic  string       `json:"diagnostic,omitempty"`
	Error       string       `json:"error,omitempty"`
	History     []Transition `json:"history"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
