package filesystem

import (
	"net/url"
	"path/filepath"
	"strings"
)

// ResolveWebURL converts a file:// URI back to a local path.
// Bare paths pass through unchanged.
func ResolveWebURL(uri string) string {
	if strings.HasPrefix(uri, "file://") {
		if u, err := url.Parse(uri); err == nil && u.Path != "" {
			return u.Path
		}
		return strings.TrimPrefix(uri, "file://")
	}
	return uri
}

// FileURL returns the file:// URL of path. Relative paths are made
// absolute first; an empty path yields "".
func FileURL(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}
