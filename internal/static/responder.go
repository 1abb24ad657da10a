// Package static writes resolved files to HTTP responses.
//
// Files are streamed from disk. HTML documents can carry the live-reload
// client: the injection point is located with a streaming scan and the
// response is assembled from section readers around it, so even large pages
// are never held in memory and every byte outside the snippet is unchanged.
package static

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"liveserve/internal/model"
	"liveserve/internal/resolver"
)

type Responder struct {
	fallbackStatus int
	snippet        string
}

// New returns a Responder. snippet is inserted into HTML documents; an empty
// snippet disables injection.
func New(fallbackStatus int, snippet string) *Responder {
	if fallbackStatus == 0 {
		fallbackStatus = http.StatusOK
	}

	return &Responder{
		fallbackStatus: fallbackStatus,
		snippet:        snippet,
	}
}

func (s *Responder) Respond(w http.ResponseWriter, r *http.Request, entry model.ResolvedEntry) error {
	w.Header().Set("Cache-Control", "no-cache")

	if !entry.Exists {
		return s.notFound(w, r)
	}

	f, err := os.Open(entry.AbsolutePath)
	if err != nil {
		// removed between resolve and open
		return s.notFound(w, r)
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return s.notFound(w, r)
	}

	w.Header().Set("Content-Type", entry.ContentType)

	status := http.StatusOK
	if entry.IsFallback {
		status = s.fallbackStatus
	}

	if s.snippet != "" && resolver.IsHTML(entry.ContentType) {
		offset, ok, err := findInjectionPoint(f)
		if err != nil {
			return err
		}
		if ok {
			return s.serveInjected(w, r, f, info, offset, status)
		}
	}

	if status == http.StatusOK {
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
		return nil
	}

	return serveStream(w, r, io.NewSectionReader(f, 0, info.Size()), info, info.Size(), status)
}

func (s *Responder) serveInjected(w http.ResponseWriter, r *http.Request, f *os.File, info os.FileInfo, offset int64, status int) error {
	size := info.Size()
	body := io.MultiReader(
		io.NewSectionReader(f, 0, offset),
		strings.NewReader(s.snippet),
		io.NewSectionReader(f, offset, size-offset),
	)

	return serveStream(w, r, body, info, size+int64(len(s.snippet)), status)
}

func serveStream(w http.ResponseWriter, r *http.Request, body io.Reader, info os.FileInfo, length int64, status int) error {
	h := w.Header()
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	h.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return nil
	}

	_, err := io.Copy(w, body)
	return err
}

func (s *Responder) notFound(w http.ResponseWriter, r *http.Request) error {
	const body = "404 Not Found\n"

	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusNotFound)

	if r.Method != http.MethodHead {
		_, _ = io.WriteString(w, body)
	}

	return model.ErrNotFound
}
