package static

import (
	"bytes"
	"crypto/rand"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"liveserve/internal/model"
	"liveserve/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSnippet = "<script>reload()</script>"

func entryFor(t *testing.T, dir, name string, content []byte) model.ResolvedEntry {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0644))

	return model.ResolvedEntry{
		AbsolutePath: path,
		Exists:       true,
		ContentType:  resolver.ContentType(path),
	}
}

func serve(t *testing.T, s *Responder, method string, entry model.ResolvedEntry) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(method, "/", nil)
	rec := httptest.NewRecorder()
	err := s.Respond(rec, req, entry)
	return rec, err
}

func TestRespond_BinaryRoundTrip(t *testing.T) {
	content := make([]byte, 3*1024*1024+17)
	_, err := rand.Read(content)
	require.NoError(t, err)

	entry := entryFor(t, t.TempDir(), "blob.bin", content)
	rec, err := serve(t, New(200, testSnippet), http.MethodGet, entry)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.True(t, bytes.Equal(content, rec.Body.Bytes()))
}

func TestRespond_HTMLWithoutSnippet(t *testing.T) {
	content := []byte("<html><body>hi</body></html>")
	entry := entryFor(t, t.TempDir(), "index.html", content)

	rec, err := serve(t, New(200, ""), http.MethodGet, entry)
	require.NoError(t, err)
	assert.Equal(t, content, rec.Body.Bytes())
}

func TestRespond_InjectsBeforeBody(t *testing.T) {
	content := "<html><head></head><BODY>hi</BODY></html>"
	entry := entryFor(t, t.TempDir(), "index.html", []byte(content))

	rec, err := serve(t, New(200, testSnippet), http.MethodGet, entry)
	require.NoError(t, err)

	want := "<html><head></head><BODY>hi" + testSnippet + "</BODY></html>"
	assert.Equal(t, want, rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, len(want), int(rec.Result().ContentLength))
}

func TestRespond_InjectionCandidates(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "svg",
			content: "<svg><rect/></svg>",
			want:    "<svg><rect/>" + testSnippet + "</svg>",
		},
		{
			name:    "head only",
			content: "<html><head><title>x</title></head></html>",
			want:    "<html><head><title>x</title>" + testSnippet + "</head></html>",
		},
		{
			name:    "body beats head",
			content: "<head></head><body></body>",
			want:    "<head></head><body>" + testSnippet + "</body>",
		},
		{
			name:    "no candidate",
			content: "<p>fragment</p>",
			want:    "<p>fragment</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := entryFor(t, t.TempDir(), "page.html", []byte(tt.content))
			rec, err := serve(t, New(200, testSnippet), http.MethodGet, entry)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestRespond_InjectsAcrossChunkBoundary(t *testing.T) {
	// place </body> so it straddles the first scan chunk
	prefix := strings.Repeat("a", scanChunkSize-3)
	content := prefix + "</body>tail"
	entry := entryFor(t, t.TempDir(), "big.html", []byte(content))

	rec, err := serve(t, New(200, testSnippet), http.MethodGet, entry)
	require.NoError(t, err)
	assert.Equal(t, prefix+testSnippet+"</body>tail", rec.Body.String())
}

func TestRespond_FallbackStatus(t *testing.T) {
	entry := entryFor(t, t.TempDir(), "index.html", []byte("<p>app</p>"))
	entry.IsFallback = true

	rec, err := serve(t, New(http.StatusNotFound, ""), http.MethodGet, entry)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "<p>app</p>", rec.Body.String())

	rec, err = serve(t, New(0, ""), http.MethodGet, entry)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRespond_NotFound(t *testing.T) {
	entry := model.ResolvedEntry{AbsolutePath: "/nowhere", Exists: false}

	rec, err := serve(t, New(200, testSnippet), http.MethodGet, entry)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "404 Not Found\n", rec.Body.String())
}

func TestRespond_VanishedFile(t *testing.T) {
	entry := entryFor(t, t.TempDir(), "gone.css", []byte("x"))
	require.NoError(t, os.Remove(entry.AbsolutePath))

	rec, err := serve(t, New(200, ""), http.MethodGet, entry)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRespond_Head(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		entry model.ResolvedEntry
		code  int
	}{
		{"plain", entryFor(t, dir, "a.css", []byte("body{}")), http.StatusOK},
		{"injected", entryFor(t, dir, "a.html", []byte("<body></body>")), http.StatusOK},
		{"missing", model.ResolvedEntry{}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := serve(t, New(200, testSnippet), http.MethodHead, tt.entry)
			assert.Equal(t, tt.code, rec.Code)
			assert.Empty(t, rec.Body.Bytes())
			assert.NotEmpty(t, rec.Header().Get("Content-Length"))
		})
	}
}

func TestRespond_Range(t *testing.T) {
	entry := entryFor(t, t.TempDir(), "data.txt", []byte("0123456789"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()

	require.NoError(t, New(200, "").Respond(rec, req, entry))
	assert.Equal(t, http.StatusPartialContent, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(body))
}

func TestClientSnippet(t *testing.T) {
	snippet := ClientSnippet("/_liveserve/ws")

	assert.True(t, strings.HasPrefix(snippet, "<!-- injected by liveserve -->"))
	assert.Contains(t, snippet, `"/_liveserve/ws"`)
	assert.Contains(t, snippet, "<script>")
	assert.Contains(t, snippet, "</script>")
}
