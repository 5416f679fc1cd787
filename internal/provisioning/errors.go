package provisioning

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedSource = errors.New("unsupported source image")
	ErrUnsupportedFormat = errors.New("unsupported target format")
	ErrUnusableReference = errors.New("image reference is unusable")
	ErrNoListener        = errors.New("no free port for asset listener")
)

// ResizeError reports a failed resize of Source
type ResizeError struct {
	Source string
	Err    error
}

func (e *ResizeError) Error() string {
	return fmt.Sprintf("resize %s: %v", e.Source, e.Err)
}

func (e *ResizeError) Unwrap() error { return e.Err }

// ServeError reports a listener that could not be started for Path
type ServeError struct {
	Path string
	Err  error
}

func (e *ServeError) Error() string {
	return fmt.Sprintf("serve %s: %v", e.Path, e.Err)
}

func (e *ServeError) Unwrap() error { return e.Err }

// FetchError reports a failed download. Status is zero for transport errors.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ClientError reports a 4xx response, which says nothing about upstream health
func (e *FetchError) ClientError() bool {
	return e.Status >= 400 && e.Status < 500
}
