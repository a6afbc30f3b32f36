// Package static implements the file responder: it resolves a request URL to
// a file under the site root, guesses its content type and renders the 404
// and 500 pages. It has no HTTP transport of its own; internal/server adapts
// it to fiber.
package static

import (
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/soulconnect/soulconnect/internal/mime"
)

// IndexFile is served for the bare root path.
const IndexFile = "index.html"

// Response is the transport-independent result of Serve.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Responder serves files out of an fs.FS, typically os.DirFS(root).
type Responder struct {
	files fs.FS
	mimes mime.Table
}

// New builds a Responder. A nil table selects mime.Default().
func New(files fs.FS, mimes mime.Table) *Responder {
	if mimes == nil {
		mimes = mime.Default()
	}
	return &Responder{files: files, mimes: mimes}
}

// Serve answers one request. OPTIONS never touches the file system; every
// other method is a read of the resolved file.
func (r *Responder) Serve(method, rawURL string) Response {
	header := http.Header{}
	ApplyCORS(header)

	if method == http.MethodOptions {
		return Response{Status: http.StatusOK, Header: header}
	}

	name := ResolvePath(rawURL)
	content, err := fs.ReadFile(r.files, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			header.Set("Content-Type", "text/html")
			return Response{Status: http.StatusNotFound, Header: header, Body: notFoundPage(rawURL)}
		}
		header.Set("Content-Type", "text/plain")
		return Response{Status: http.StatusInternalServerError, Header: header, Body: serverErrorBody(err)}
	}

	header.Set("Content-Type", r.mimes.TypeFor(name))
	return Response{Status: http.StatusOK, Header: header, Body: content}
}

// ResolvePath maps a request URL to a slash-separated path relative to the
// site root. The query is dropped and the path is cleaned against "/", so the
// result never contains ".." and never leaves the root.
func ResolvePath(rawURL string) string {
	p := rawURL
	if u, err := url.ParseRequestURI(rawURL); err == nil {
		p = u.Path
	} else if idx := strings.IndexAny(p, "?#"); idx >= 0 {
		p = p[:idx]
	}

	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	if clean == "" {
		return IndexFile
	}
	return clean
}
