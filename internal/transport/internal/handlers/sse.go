// Package handlers provides the HTTP handlers of the SSE transport.
package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jamesprial/pocketbase-mcp/internal/logging"
	"github.com/jamesprial/pocketbase-mcp/internal/session"
	"github.com/jamesprial/pocketbase-mcp/internal/transport/transportcore"
	"github.com/jamesprial/pocketbase-mcp/pkg/api"
)

// DefaultKeepAlive is the interval between SSE keep-alive comments.
const DefaultKeepAlive = 15 * time.Second

// SessionStore is the part of session.Manager the handlers use.
type SessionStore interface {
	Create(ctx context.Context) (*session.Session, error)
	Get(id string) (*session.Session, bool)
	Remove(id string)
}

// sseHandler opens a session per GET and streams its outbound messages.
type sseHandler struct {
	sessions  SessionStore
	responder transportcore.ErrorResponder
	logger    *zap.Logger
	keepAlive time.Duration
}

// NewSSEHandler creates the GET /sse handler. The first event names the
// endpoint to POST messages to; responses follow as "message" events until
// the client disconnects, at which point the session is removed.
func NewSSEHandler(sessions SessionStore, responder transportcore.ErrorResponder, logger *zap.Logger, keepAlive time.Duration) http.Handler {
	if sessions == nil {
		panic("sessions cannot be nil")
	}
	if responder == nil {
		panic("responder cannot be nil")
	}
	logger = logging.OrNop(logger)
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &sseHandler{
		sessions:  sessions,
		responder: responder,
		logger:    logger,
		keepAlive: keepAlive,
	}
}

func (h *sseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rc := http.NewResponseController(w)

	s, err := h.sessions.Create(r.Context())
	if err != nil {
		h.responder.InternalError(w, err)
		return
	}
	defer h.sessions.Remove(s.ID)

	// Streams outlive any server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	header := w.Header()
	header.Set(api.HeaderContentType, api.ContentTypeEventStream)
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "endpoint", s.Transport.Endpoint()); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Error("sse flush", zap.String("session", s.ID), zap.Error(fmt.Errorf("%w: %v", transportcore.ErrStreamingUnsupported, err)))
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.Transport.Done():
			return
		case msg := <-s.Transport.Messages():
			if err := writeEvent(w, "message", string(msg)); err != nil {
				h.logger.Debug("sse write", zap.String("session", s.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeEvent writes one SSE frame. Multi-line data is split into several
// data lines.
func writeEvent(w io.Writer, event, data string) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
