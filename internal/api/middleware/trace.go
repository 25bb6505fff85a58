package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/studbud/internal/api/shared"
	"github.com/phrazzld/studbud/internal/platform/logger"
)

// TraceHeader carries the trace id on requests and responses.
const TraceHeader = "X-Trace-ID"

// NewTraceMiddleware tags every request with a trace id and a request-scoped
// logger. A well-formed incoming X-Trace-ID is reused. It should run early in
// the chain so later handlers see both.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			incoming := r.Header.Get(TraceHeader)
			if !shared.ValidTraceID(incoming) {
				incoming = ""
			}
			ctx := shared.SetTraceID(r.Context(), incoming)
			traceID := shared.GetTraceID(ctx)

			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithContext(ctx, log)
			w.Header().Set(TraceHeader, traceID)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
