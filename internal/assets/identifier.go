package assets

import (
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"strings"
)

// Identifier returns the stable identifier of the asset at rawURL: the final
// segment of the URL path. Query strings and fragments are ignored.
func Identifier(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse asset url: %w", err)
	}
	id := path.Base(u.Path)
	switch {
	case id == "." || id == "/" || id == "":
		return "", fmt.Errorf("asset url %q has no final path segment", rawURL)
	case strings.HasPrefix(id, "."):
		return "", fmt.Errorf("asset url %q has a hidden final path segment", rawURL)
	}
	return id, nil
}

// ExtensionFor derives a file extension from a Content-Type header value.
// Parameters and structured-syntax suffixes are dropped:
// "image/svg+xml; charset=utf-8" yields "svg".
func ExtensionFor(contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("content type %q: %w", contentType, err)
	}
	_, sub, ok := strings.Cut(mediaType, "/")
	if i := strings.IndexByte(sub, '+'); i > 0 {
		sub = sub[:i]
	}
	if !ok || sub == "" || sub == "*" {
		return "", fmt.Errorf("content type %q has no subtype", contentType)
	}
	for _, r := range sub {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '.') {
			return "", fmt.Errorf("content type %q has an unusable subtype", contentType)
		}
	}
	return sub, nil
}

// Index maps asset identifiers to the file names present in one directory.
type Index map[string]string

// LoadIndex scans dir. A missing directory yields an empty index.
// Hidden files (temporary downloads) and directories are ignored.
func LoadIndex(dir string) (Index, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return Index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", dir, err)
	}

	idx := make(Index, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		dot := strings.LastIndexByte(name, '.')
		if dot <= 0 {
			continue
		}
		id := name[:dot]
		if prev, ok := idx[id]; ok && prev < name {
			// Two extensions for one identifier; keep the result stable.
			continue
		}
		idx[id] = name
	}
	return idx, nil
}

// Lookup returns the file name stored for identifier id.
func (ix Index) Lookup(id string) (string, bool) {
	name, ok := ix[id]
	return name, ok
}

// LookupURL returns the file name stored for the asset at rawURL.
func (ix Index) LookupURL(rawURL string) (string, bool) {
	id, err := Identifier(rawURL)
	if err != nil {
		return "", false
	}
	return ix.Lookup(id)
}
