package api

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "quoteflow-api"

// NewHandler returns the HTTP handler that cmd/api wires into its server.
// Liveness probes and metric scrapes are not traced.
func NewHandler(router http.Handler) http.Handler {
	return otelhttp.NewHandler(router, serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health/live" && r.URL.Path != "/metrics"
		}),
	)
}
