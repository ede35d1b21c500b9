// Package session tracks SSE sessions: one outbound message queue and one
// protocol handler per connected client.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
	"github.com/jamesprial/pocketbase-mcp/internal/mcp"
	"github.com/jamesprial/pocketbase-mcp/pkg/api"
)

const domain = "session"

// ErrClosed is returned when sending on a transport whose stream has ended.
var ErrClosed = errors.New("session transport closed")

// Transport is the server-to-client half of an SSE session. Messages queued
// with Send are written to the stream by whoever drains Messages.
type Transport struct {
	endpoint string
	out      chan []byte
	done     chan struct{}
	once     sync.Once
}

func newTransport(id string, buffer int) *Transport {
	return &Transport{
		endpoint: fmt.Sprintf("%s?%s=%s", api.PathMessages, api.QuerySessionID, id),
		out:      make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

// Endpoint is the relative URL clients POST messages to.
func (t *Transport) Endpoint() string {
	return t.endpoint
}

// Messages yields queued outbound messages.
func (t *Transport) Messages() <-chan []byte {
	return t.out
}

// Done is closed once the transport is closed.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Closed reports whether Close has been called.
func (t *Transport) Closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Send queues msg for the stream. It blocks while the queue is full and
// returns ErrClosed if the transport closes first.
func (t *Transport) Send(msg []byte) error {
	if t.Closed() {
		return ErrClosed
	}
	select {
	case t.out <- msg:
		return nil
	case <-t.done:
		return ErrClosed
	}
}

// Close ends the transport. It is safe to call more than once.
func (t *Transport) Close() {
	t.once.Do(func() { close(t.done) })
}

// Session binds a transport to its own protocol handler.
type Session struct {
	ID        string
	Transport *Transport
	Handler   mcp.Handler
	Created   time.Time

	logger *zap.Logger
}

// Deliver accepts one raw client message. The message is handled on its own
// goroutine with a context detached from ctx, so the caller may return as soon
// as Deliver does. Any response is queued on the transport, or dropped if the
// transport has closed meanwhile.
func (s *Session) Deliver(ctx context.Context, raw []byte) error {
	if s.Transport.Closed() {
		return internalerrors.New(domain, "Deliver", internalerrors.ErrNotFound, ErrClosed).
			WithContext("session", s.ID)
	}
	if !json.Valid(raw) {
		return internalerrors.New(domain, "Deliver", internalerrors.ErrBadRequest, errors.New("invalid JSON"))
	}

	detached := context.WithoutCancel(ctx)
	go s.handle(detached, raw)
	return nil
}

func (s *Session) handle(ctx context.Context, raw []byte) {
	resp, err := mcp.HandleMessage(ctx, s.Handler, raw)
	if err != nil {
		s.logger.Error("handle message", zap.String("session", s.ID), zap.Error(err))
		return
	}
	if resp == nil {
		return
	}
	if err := s.Transport.Send(resp); err != nil {
		s.logger.Debug("response dropped", zap.String("session", s.ID), zap.Error(err))
	}
}
