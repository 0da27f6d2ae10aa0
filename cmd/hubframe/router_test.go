package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/hubframe/dbopen"
	"github.com/hazyhaar/hubframe/heightlog"
	"github.com/hazyhaar/hubframe/origin"
)

var shop = []origin.Origin{"https://shop.example.com"}

func testRouter(t *testing.T, staticDir string) http.Handler {
	t.Helper()
	reports, err := heightlog.New(heightlog.Config{DB: dbopen.OpenMemory(t), AllowedOrigins: shop})
	require.NoError(t, err)
	t.Cleanup(reports.Close)
	return newRouter(shop, reports, nil, staticDir)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_EmbedHeaders(t *testing.T) {
	// WHAT: responses let the configured shop frame the widget.
	// WHY: the default DENY would blank the iframe on the host page.
	rec := serve(testRouter(t, ""), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'self' https://shop.example.com")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
}

func TestRouter_HeadHealthz(t *testing.T) {
	rec := serve(testRouter(t, ""), httptest.NewRequest(http.MethodHead, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	rec := serve(testRouter(t, ""), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_HeightReport(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/wp-json/hubframe/v1/height-report", strings.NewReader(`{"height":900,"isExpanded":false,"ts":"1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://shop.example.com")
	rec := serve(testRouter(t, ""), req)
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
}

func TestRouter_NoCacheWithoutUpstream(t *testing.T) {
	rec := serve(testRouter(t, ""), httptest.NewRequest(http.MethodGet, "/wp-json/wp/v2/posts", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Static(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<div id=hubframe></div>"), 0o644))

	rec := serve(testRouter(t, dir), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hubframe")
}
