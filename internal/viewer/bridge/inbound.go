package bridge

import (
	"errors"
	"sync"
)

// ErrAlreadyInjected is returned when an injection is taken twice
var ErrAlreadyInjected = errors.New("injection already delivered")

// Global names the document script reads
const (
	GlobalImageURL   = "imageUrl"
	GlobalImageWidth = "imageWidth"
)

// Injection is the initialization parameter handed to the sandbox
type Injection struct {
	ImageURL      string `json:"imageUrl"`
	GeometryWidth int    `json:"imageWidth,omitempty"`
}

// Globals returns the injection as sandbox global bindings.
// imageWidth is omitted when unknown so the document falls back to its default.
func (i Injection) Globals() map[string]any {
	globals := map[string]any{GlobalImageURL: i.ImageURL}
	if i.GeometryWidth > 0 {
		globals[GlobalImageWidth] = i.GeometryWidth
	}
	return globals
}

// Inbound delivers one injection at most once
type Inbound struct {
	mu        sync.Mutex
	injection Injection
	taken     bool
}

// NewInbound wraps an injection for single delivery
func NewInbound(injection Injection) *Inbound {
	return &Inbound{injection: injection}
}

// Take hands out the injection. Every call after the first fails.
func (in *Inbound) Take() (Injection, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.taken {
		return Injection{}, ErrAlreadyInjected
	}
	in.taken = true
	return in.injection, nil
}

// Taken reports whether the injection was delivered
func (in *Inbound) Taken() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.taken
}
