// Package api builds the HTTP surface: the versioned REST routes, the
// operational probes and the documentation endpoints.
package api

import (
	_ "embed"
	"net/http"

	"dialogd/pkg/api/handlers"
	"dialogd/pkg/auth"
	"dialogd/pkg/store"
	"dialogd/pkg/telemetry"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed openapi.json
var openapiDoc []byte

// NewRouter assembles the full route tree. The /v1 subtree requires a
// verified author identity; probes, metrics and docs stay open.
func NewRouter(version string) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID)
	r.Use(telemetry.Middleware(routeTemplate))

	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", readyzHandler(version)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/docs/doc.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(openapiDoc)
	}).Methods(http.MethodGet)
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(auth.RequireSignedAuthor)
	handlers.RegisterThreads(v1)
	handlers.RegisterMessages(v1)
	handlers.RegisterAdmin(v1)

	return r
}

// requestID tags every request with an id for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// routeTemplate returns the matched mux path template so metric labels stay
// bounded; unmatched requests fall back to the raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// healthzHandler is the liveness probe used by deployment systems and CI.
func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// readyzHandler reports readiness: the store must be open.
func readyzHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !store.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		if version == "" {
			version = "dev"
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","version":"` + version + `"}`))
	}
}
