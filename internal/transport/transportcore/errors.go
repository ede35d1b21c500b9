package transportcore

import (
	"errors"
)

// Sentinel errors for transport operations.
// These are used for error identification and testing.
// For creating domain errors with context, wrap these with DomainError from internal/errors.
var (
	// ErrMissingToken indicates the Authorization header is missing or empty.
	ErrMissingToken = errors.New("missing authorization token")

	// ErrInvalidToken indicates the token is malformed, unsigned, or expired.
	ErrInvalidToken = errors.New("invalid authorization token")

	// ErrMissingSessionID indicates a message was posted without a sessionId.
	ErrMissingSessionID = errors.New("missing sessionId")

	// ErrSessionNotFound indicates the sessionId names no live session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStreamingUnsupported indicates the response writer cannot flush.
	ErrStreamingUnsupported = errors.New("streaming unsupported")

	// ErrServerClosed indicates the server has been closed and cannot accept requests.
	ErrServerClosed = errors.New("server closed")
)
