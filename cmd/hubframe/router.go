package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/hubframe/contentcache"
	"github.com/hazyhaar/hubframe/heightlog"
	"github.com/hazyhaar/hubframe/origin"
	"github.com/hazyhaar/hubframe/shield"
)

// newRouter wires the service routes. cache and staticDir are optional.
func newRouter(origins []origin.Origin, reports *heightlog.Service, cache *contentcache.Cache, staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	for _, mw := range shield.DefaultStack(origins) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	reports.RegisterHTTP(r)
	if cache != nil {
		cache.RegisterHTTP(r)
	}
	if staticDir != "" {
		// widget.wasm, wasm_exec.js and the widget page.
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
	return r
}
