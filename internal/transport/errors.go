package transport

import (
	"github.com/jamesprial/pocketbase-mcp/internal/transport/transportcore"
)

// Re-export errors from transportcore.
var (
	// ErrMissingToken indicates the Authorization header is missing or empty.
	ErrMissingToken = transportcore.ErrMissingToken

	// ErrInvalidToken indicates the bearer token failed verification.
	ErrInvalidToken = transportcore.ErrInvalidToken

	// ErrMissingSessionID indicates a message was posted without a sessionId.
	ErrMissingSessionID = transportcore.ErrMissingSessionID

	// ErrSessionNotFound indicates the sessionId names no live session.
	ErrSessionNotFound = transportcore.ErrSessionNotFound

	// ErrServerClosed indicates the server has been closed and cannot accept requests.
	ErrServerClosed = transportcore.ErrServerClosed
)
