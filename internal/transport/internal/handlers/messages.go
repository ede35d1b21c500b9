package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
	"github.com/jamesprial/pocketbase-mcp/internal/logging"
	"github.com/jamesprial/pocketbase-mcp/internal/transport/transportcore"
	"github.com/jamesprial/pocketbase-mcp/pkg/api"
)

// DefaultMaxBodyBytes bounds a posted message.
const DefaultMaxBodyBytes = 4 << 20

// messagesHandler routes posted JSON-RPC messages to their session.
type messagesHandler struct {
	sessions  SessionStore
	responder transportcore.ErrorResponder
	logger    *zap.Logger
	maxBody   int64
}

// NewMessagesHandler creates the POST /messages handler. A routed message is
// acknowledged with 202; its response, if any, arrives on the session's SSE
// stream.
func NewMessagesHandler(sessions SessionStore, responder transportcore.ErrorResponder, logger *zap.Logger) http.Handler {
	if sessions == nil {
		panic("sessions cannot be nil")
	}
	if responder == nil {
		panic("responder cannot be nil")
	}
	logger = logging.OrNop(logger)
	return &messagesHandler{
		sessions:  sessions,
		responder: responder,
		logger:    logger,
		maxBody:   DefaultMaxBodyBytes,
	}
}

func (h *messagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get(api.QuerySessionID)
	if id == "" {
		h.responder.BadRequest(w, transportcore.ErrMissingSessionID)
		return
	}

	s, ok := h.sessions.Get(id)
	if !ok {
		h.responder.NotFound(w, transportcore.ErrSessionNotFound)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		h.responder.BadRequest(w, err)
		return
	}
	defer func() {
		if closeErr := r.Body.Close(); closeErr != nil {
			h.logger.Warn("failed to close request body", zap.Error(closeErr))
		}
	}()

	if err := s.Deliver(r.Context(), body); err != nil {
		switch {
		case errors.Is(err, internalerrors.ErrBadRequest):
			h.responder.BadRequest(w, err)
		case errors.Is(err, internalerrors.ErrNotFound):
			h.responder.NotFound(w, transportcore.ErrSessionNotFound)
		default:
			h.responder.InternalError(w, err)
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_, _ = io.WriteString(w, "Accepted")
}
