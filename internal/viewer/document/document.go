package document

import (
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/photosphere/internal/viewer/bridge"
)

// Element ids the document script and surfaces rely on
const (
	ViewerID      = "viewer"
	PlaceholderID = "displayText"
	ButtonID      = "loadButton"
)

const headOpen = "<head>"

var titlePolicy = bluemonday.StrictPolicy()

// scriptConfig is serialized into the document script
type scriptConfig struct {
	GeometryWidth int     `json:"geometryWidth"`
	MaxResolution int     `json:"maxResolution"`
	MaxFOVDegrees float64 `json:"maxFovDegrees"`
	PinFirstLevel bool    `json:"pinFirstLevel"`
	AutoLoad      bool    `json:"autoLoad"`
}

type pageData struct {
	Title       string
	LibraryURL  string
	Placeholder string
	ButtonLabel string
	Config      scriptConfig
}

type injectionData struct {
	ImageURL   string
	ImageWidth int
	Preamble   template.JS
}

var (
	pageTemplate      = template.Must(template.New("page").Parse(pageSource))
	injectionTemplate = template.Must(template.New("injection").Parse(injectionSource))
)

// Document is the instantiated static viewer markup
type Document struct {
	opts Options
	html string
}

// New builds the static document for opts
func New(opts Options) (*Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document options: %w", err)
	}

	data := pageData{
		Title:       SanitizeTitle(opts.Title),
		LibraryURL:  opts.LibraryURL,
		Placeholder: opts.Placeholder,
		ButtonLabel: opts.ButtonLabel,
		Config: scriptConfig{
			GeometryWidth: opts.GeometryWidth,
			MaxResolution: opts.MaxResolution,
			MaxFOVDegrees: opts.MaxFOVDegrees,
			PinFirstLevel: opts.PinFirstLevel,
			AutoLoad:      opts.LoadMode == LoadAuto,
		},
	}

	var buf strings.Builder
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}

	return &Document{opts: opts, html: buf.String()}, nil
}

// SanitizeTitle strips markup from a caller supplied display name
func SanitizeTitle(title string) string {
	return strings.TrimSpace(html.UnescapeString(titlePolicy.Sanitize(title)))
}

// HTML returns the document without any injection
func (d *Document) HTML() string {
	return d.html
}

// Options returns the options the document was built with
func (d *Document) Options() Options {
	return d.opts
}

// LibraryURL is the script source that provides the rendering capability
func (d *Document) LibraryURL() string {
	return d.opts.LibraryURL
}

// Render places the injection, then the optional preamble, as the first
// scripts in <head>, so the values exist before any other script runs.
// The reference is escaped for a JavaScript string context.
func (d *Document) Render(injection bridge.Injection, preamble string) (string, error) {
	var buf strings.Builder
	data := injectionData{
		ImageURL:   injection.ImageURL,
		ImageWidth: injection.GeometryWidth,
		Preamble:   template.JS(preamble),
	}
	if err := injectionTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render injection: %w", err)
	}

	i := strings.Index(d.html, headOpen)
	if i < 0 {
		return "", fmt.Errorf("document has no %s element", headOpen)
	}
	at := i + len(headOpen)
	return d.html[:at] + buf.String() + d.html[at:], nil
}
