// Package images holds the discovered-image model plus the deduplication
// and filtering logic applied to a scan's result set.
package images

import (
	"net/url"
	"path"
	"strings"
)

// Record is one discovered image. IDs are assigned by the scan
// orchestrator, not the extraction backend, and stay stable for the
// lifetime of a result set so selection state remains consistent.
type Record struct {
	ID         int    `json:"id"`
	Src        string `json:"src"`
	Name       string `json:"name"`
	Dimensions string `json:"dimensions,omitempty"`
	SourceURL  string `json:"sourceUrl,omitempty"`
}

// Format returns the uppercased extension of the record's name, without
// the leading dot. Empty when the name has no extension.
func (r Record) Format() string {
	ext := path.Ext(r.Name)
	if ext == "" {
		return ""
	}
	return strings.ToUpper(strings.TrimPrefix(ext, "."))
}

// Width parses the width component of the "WIDTHxHEIGHT" dimensions
// string. Returns 0, false when dimensions are absent or unparsable.
func (r Record) Width() (int, bool) {
	dims := r.Dimensions
	if dims == "" || strings.EqualFold(dims, "Unknown") {
		return 0, false
	}
	idx := strings.IndexAny(dims, "xX")
	if idx <= 0 {
		return 0, false
	}
	w := 0
	for _, c := range dims[:idx] {
		if c < '0' || c > '9' {
			return 0, false
		}
		w = w*10 + int(c-'0')
	}
	return w, true
}

// NameFromURL derives a filename for an image URL: the last path segment,
// falling back to "image" when the path carries none.
func NameFromURL(src string) string {
	p := src
	if u, err := url.Parse(src); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	name := path.Base(p)
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return name
}
