package metrics

import (
	"net/http"
	"time"
)

// statusWriter captures the status code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware instruments a handler with request metrics. The path
// label is the mux route pattern (available once the mux has matched),
// so parameterized URLs like /api/v1/quote/AAPL collapse into a single
// series per endpoint instead of one per symbol.
func HTTPMiddleware(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg.InFlightInc()
			defer reg.InFlightDec()

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			reg.RecordRequest(r.Method, route, sw.status, time.Since(start).Seconds())
		})
	}
}
