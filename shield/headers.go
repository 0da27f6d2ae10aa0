package shield

import (
	"net/http"
	"strings"

	"github.com/hazyhaar/hubframe/origin"
)

// HeaderConfig defines the security headers applied to every response.
type HeaderConfig struct {
	CSP                 string
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	PermissionsPolicy   string
}

// DefaultHeaders forbids framing entirely. Use it for pages that are never
// embedded.
func DefaultHeaders() HeaderConfig {
	return HeaderConfig{
		CSP:                 "default-src 'self'; img-src 'self' data: https:; frame-ancestors 'none'",
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		PermissionsPolicy:   "camera=(), microphone=(), geolocation=()",
	}
}

// EmbedHeaders allows the listed origins to frame the widget. The widget
// runs as wasm and talks to the CMS, so script and connect sources are
// widened accordingly. X-Frame-Options is omitted because it cannot name
// several origins; frame-ancestors supersedes it. With no known origin it
// falls back to DefaultHeaders.
func EmbedHeaders(embedders []origin.Origin) HeaderConfig {
	var ancestors []string
	for _, o := range embedders {
		if o.IsKnown() && o != origin.Wildcard {
			ancestors = append(ancestors, o.String())
		}
	}
	if len(ancestors) == 0 {
		return DefaultHeaders()
	}
	list := strings.Join(ancestors, " ")
	cfg := DefaultHeaders()
	cfg.XFrameOptions = ""
	cfg.CSP = "default-src 'self'; script-src 'self' 'wasm-unsafe-eval'; style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data: https:; connect-src 'self' " + list + "; frame-ancestors 'self' " + list
	return cfg
}

// SecurityHeaders returns middleware that sets the configured security headers
// on every response.
func SecurityHeaders(cfg HeaderConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if cfg.XContentTypeOptions != "" {
				h.Set("X-Content-Type-Options", cfg.XContentTypeOptions)
			}
			if cfg.XFrameOptions != "" {
				h.Set("X-Frame-Options", cfg.XFrameOptions)
			}
			if cfg.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", cfg.ReferrerPolicy)
			}
			if cfg.CSP != "" {
				h.Set("Content-Security-Policy", cfg.CSP)
			}
			if cfg.PermissionsPolicy != "" {
				h.Set("Permissions-Policy", cfg.PermissionsPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}
