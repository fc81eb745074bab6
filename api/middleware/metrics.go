package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/quoteflow/pkg/metrics"
)

// Metrics observes request latency labelled by the matched chi route pattern,
// which keeps flow ids and share tokens out of the label set.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)
			m.ObserveRequest(routePattern(r), r.Method, defaultStatus(rec.status), time.Since(start))
		})
	}
}
