package provisioning

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Kind classifies an image reference
type Kind int

const (
	KindUnknown Kind = iota
	KindLocal        // bare filesystem path
	KindFile         // file:// URL
	KindRemote       // http or https URL
	KindData         // data: URL
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindFile:
		return "file"
	case KindRemote:
		return "remote"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Classify inspects the scheme of ref
func Classify(ref string) Kind {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return KindUnknown
	}
	if strings.HasPrefix(strings.ToLower(ref), "data:") {
		return KindData
	}

	u, err := url.Parse(ref)
	if err != nil {
		if filepath.IsAbs(ref) {
			return KindLocal
		}
		return KindUnknown
	}

	switch strings.ToLower(u.Scheme) {
	case "":
		return KindLocal
	case "file":
		return KindFile
	case "http", "https":
		return KindRemote
	}
	// C:\pano.jpg parses with scheme "c"
	if len(u.Scheme) == 1 {
		return KindLocal
	}
	return KindUnknown
}

// LocalPath returns the filesystem path behind a local or file:// reference
func LocalPath(ref string) (string, bool) {
	switch Classify(ref) {
	case KindLocal:
		return strings.TrimSpace(ref), true
	case KindFile:
		u, err := url.Parse(strings.TrimSpace(ref))
		if err != nil || u.Path == "" {
			return "", false
		}
		return filepath.FromSlash(u.Path), true
	}
	return "", false
}

// FileURL renders path as a file:// URL
func FileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
