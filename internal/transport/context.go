package transport

import (
	"context"

	"github.com/jamesprial/pocketbase-mcp/internal/transport/transportcore"
)

// SubjectFromContext returns the bearer token subject stored by the auth
// middleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	return transportcore.SubjectFromContext(ctx)
}

// RequestIDFromContext returns the request id stored by the logging
// middleware.
func RequestIDFromContext(ctx context.Context) string {
	return transportcore.RequestIDFromContext(ctx)
}
