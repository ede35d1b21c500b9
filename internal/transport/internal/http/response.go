package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/jamesprial/pocketbase-mcp/internal/logging"
	"github.com/jamesprial/pocketbase-mcp/internal/transport/transportcore"
	"github.com/jamesprial/pocketbase-mcp/pkg/api"
)

// errorResponse represents a JSON error response body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// errorResponder implements transportcore.ErrorResponder.
type errorResponder struct {
	realm  string
	logger *zap.Logger
}

// NewErrorResponder creates an error responder. realm is advertised in the
// WWW-Authenticate header of 401 responses when non-empty.
func NewErrorResponder(realm string, logger *zap.Logger) transportcore.ErrorResponder {
	logger = logging.OrNop(logger)
	return &errorResponder{realm: realm, logger: logger}
}

// Unauthorized sends a 401 with `WWW-Authenticate: Bearer [realm="..."]`.
// The client-facing message never includes the validation error.
func (e *errorResponder) Unauthorized(w http.ResponseWriter, err error) {
	challenge := api.BearerToken
	if e.realm != "" {
		challenge += ` realm="` + e.realm + `"`
	}
	w.Header().Set(api.HeaderWWWAuthenticate, challenge)
	e.logger.Warn("unauthorized request", zap.Error(err))
	e.write(w, http.StatusUnauthorized, errorResponse{
		Error:   "unauthorized",
		Message: "Authentication required",
	})
}

// BadRequest sends a 400 Bad Request response.
func (e *errorResponder) BadRequest(w http.ResponseWriter, err error) {
	e.logger.Warn("bad request", zap.Error(err))
	message := "Invalid request"
	if err != nil {
		message = err.Error()
	}
	e.write(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: message})
}

// NotFound sends a 404 response.
func (e *errorResponder) NotFound(w http.ResponseWriter, err error) {
	e.logger.Debug("not found", zap.Error(err))
	message := "Not found"
	if err != nil {
		message = err.Error()
	}
	e.write(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: message})
}

// InternalError sends a 500 response without leaking err to the client.
func (e *errorResponder) InternalError(w http.ResponseWriter, err error) {
	e.logger.Error("internal server error", zap.Error(err))
	e.write(w, http.StatusInternalServerError, errorResponse{
		Error:   "internal_error",
		Message: "An internal server error occurred",
	})
}

func (e *errorResponder) write(w http.ResponseWriter, status int, body errorResponse) {
	w.Header().Set(api.HeaderContentType, api.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		e.logger.Error("failed to encode error response", zap.Error(err))
	}
}
