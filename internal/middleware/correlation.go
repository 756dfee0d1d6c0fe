package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HeaderCorrelationID is the wire header the id travels in, on requests
// and echoed back on responses.
const HeaderCorrelationID = "X-Correlation-ID"

type ctxKey struct{}

// CorrelationID tags each request with a correlation id, honoring one the
// caller already supplied, and logs the request boundaries under it. The
// id reaches log lines through the context-aware slog handler and event
// envelopes through GetCorrelationID.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderCorrelationID)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := WithCorrelationID(r.Context(), id)
		w.Header().Set(HeaderCorrelationID, id)

		start := time.Now()
		slog.InfoContext(ctx, "request received", "method", r.Method, "path", r.URL.Path) // #nosec G706 -- r.URL.Path is parsed by Go's net/http
		next.ServeHTTP(w, r.WithContext(ctx))
		slog.InfoContext(ctx, "request completed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start)) // #nosec G706
	})
}

// CorrelationIDFromContext returns the id and whether one was set.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// GetCorrelationID returns the id, or "unknown" outside a tagged context.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := CorrelationIDFromContext(ctx); ok {
		return id
	}
	return "unknown"
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}
