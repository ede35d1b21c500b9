package pocketbase

import (
	"errors"
	"fmt"
	"net/http"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
)

// APIError is a non-2xx response from PocketBase.
type APIError struct {
	// Status is the HTTP status code.
	Status int `json:"status"`

	// Message is PocketBase's human-readable message.
	Message string `json:"message"`

	// Data carries per-field validation details, if any.
	Data map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Data) > 0 {
		return fmt.Sprintf("pocketbase: %d %s (data: %v)", e.Status, msg, e.Data)
	}
	return fmt.Sprintf("pocketbase: %d %s", e.Status, msg)
}

// Is maps HTTP statuses onto the shared sentinel kinds.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusNotFound:
		return target == internalerrors.ErrNotFound
	case http.StatusUnauthorized:
		return target == internalerrors.ErrUnauthorized
	case http.StatusForbidden:
		return target == internalerrors.ErrForbidden
	case http.StatusBadRequest:
		return target == internalerrors.ErrBadRequest
	}
	return false
}

// IsNotFound reports whether err is a PocketBase 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
