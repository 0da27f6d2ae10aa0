package shield

import (
	"mime"
	"net/http"
)

// MaxJSONBody limits the body of JSON requests. Reads past the limit fail
// and the handler answers 400. Beacons from some browsers arrive as
// text/plain, which is capped too.
func MaxJSONBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
			switch mt {
			case "application/json", "text/plain":
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
