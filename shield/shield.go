// Package shield provides the HTTP middleware of the hubframe service:
// security headers that still let allowed hosts embed the widget, a JSON
// body cap, per-client rate limiting and request tracing.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(allowed) {
//	    r.Use(mw)
//	}
package shield

import (
	"net/http"

	"github.com/hazyhaar/hubframe/origin"
)

type contextKey string

const (
	// LoggerKey is the context key for the per-request structured logger.
	LoggerKey contextKey = "shield_logger"

	// TraceIDKey is the context key for the request trace id.
	TraceIDKey contextKey = "shield_trace_id"
)

// DefaultMaxJSONBody bounds JSON request bodies. Height reports are tiny.
const DefaultMaxJSONBody = 16 * 1024

// DefaultStack returns the middleware stack of the service, ordered:
// SecurityHeaders → MaxJSONBody → TraceID. Rate limiting is applied per
// route by the handlers that need it.
func DefaultStack(embedders []origin.Origin) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders(EmbedHeaders(embedders)),
		MaxJSONBody(DefaultMaxJSONBody),
		TraceID,
	}
}
