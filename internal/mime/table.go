// Package mime maps file extensions to the Content-Type the static responder
// sends. The table is fixed for the lifetime of the process.
package mime

import (
	"path"
	"strings"
)

// DefaultType is sent for extensions missing from the table.
const DefaultType = "application/octet-stream"

// Table maps a lower-case extension including the leading dot to a content type.
type Table map[string]string

var defaultTable = Table{
	".html":        "text/html",
	".js":          "text/javascript",
	".css":         "text/css",
	".json":        "application/json",
	".png":         "image/png",
	".jpg":         "image/jpg",
	".gif":         "image/gif",
	".svg":         "image/svg+xml",
	".ico":         "image/x-icon",
	".webmanifest": "application/manifest+json",
	".txt":         "text/plain",
	".webp":        "image/webp",
	".woff2":       "font/woff2",
}

// Default returns a copy of the built-in table.
func Default() Table {
	out := make(Table, len(defaultTable))
	for ext, typ := range defaultTable {
		out[ext] = typ
	}
	return out
}

// Lookup returns the content type for ext, matched case-insensitively.
func (t Table) Lookup(ext string) (string, bool) {
	typ, ok := t[strings.ToLower(ext)]
	return typ, ok
}

// TypeFor resolves the content type of a file path, falling back to DefaultType.
func (t Table) TypeFor(name string) string {
	if typ, ok := t.Lookup(path.Ext(name)); ok {
		return typ
	}
	return DefaultType
}
