package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/studbud/internal/api/shared"
	"github.com/phrazzld/studbud/internal/platform/logger"
)

func TestTraceMiddleware(t *testing.T) {
	log, buf := logger.NewBufferLogger()
	mw := NewTraceMiddleware(log)

	var seen string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).Info("inside handler")
	}))

	t.Run("generates an id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Len(t, seen, shared.TraceIDLength)
		assert.Equal(t, seen, rr.Header().Get(TraceHeader))

		entry, ok := buf.Find("inside handler")
		assert.True(t, ok)
		assert.Equal(t, seen, entry["trace_id"])
	})

	t.Run("reuses a well-formed incoming id", func(t *testing.T) {
		incoming := "0123456789abcdef0123456789abcdef"
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(TraceHeader, incoming)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, incoming, seen)
		assert.Equal(t, incoming, rr.Header().Get(TraceHeader))
	})

	t.Run("replaces a malformed incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(TraceHeader, "not-a-trace-id")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.NotEqual(t, "not-a-trace-id", seen)
		assert.Len(t, seen, shared.TraceIDLength)
	})
}
