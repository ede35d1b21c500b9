// Package mocks provides mock implementations for testing the transport layer.
package mocks

import (
	"context"
	"net/http"
	"sync"

	"github.com/jamesprial/pocketbase-mcp/internal/mcp"
	"github.com/jamesprial/pocketbase-mcp/pkg/api"
)

// MCPHandler is a mock implementation of mcp.Handler.
type MCPHandler struct {
	HandleFunc func(ctx context.Context, req *mcp.Request) (*mcp.Response, error)
}

// HandleRequest calls the mock HandleFunc. Without one it answers every
// request with an empty result and ignores notifications.
func (m *MCPHandler) HandleRequest(ctx context.Context, req *mcp.Request) (*mcp.Response, error) {
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, req)
	}
	if req.IsNotification() {
		return nil, nil
	}
	return &mcp.Response{
		JSONRPC: mcp.JSONRPCVersion,
		ID:      req.ID,
		Result:  map[string]any{},
	}, nil
}

// Factory returns an mcp.HandlerFactory that always yields m.
func (m *MCPHandler) Factory() mcp.HandlerFactory {
	return func() mcp.Handler { return m }
}

// ErrorResponder records which responses were sent.
type ErrorResponder struct {
	mu sync.Mutex

	UnauthorizedCalled bool
	UnauthorizedErr    error
	BadRequestCalled   bool
	BadRequestErr      error
	NotFoundCalled     bool
	NotFoundErr        error
	InternalCalled     bool
	InternalErr        error
}

// Unauthorized records the call and writes a 401 response.
func (m *ErrorResponder) Unauthorized(w http.ResponseWriter, err error) {
	m.mu.Lock()
	m.UnauthorizedCalled = true
	m.UnauthorizedErr = err
	m.mu.Unlock()
	w.Header().Set(api.HeaderWWWAuthenticate, api.BearerToken)
	w.WriteHeader(http.StatusUnauthorized)
}

// BadRequest records the call and writes a 400 response.
func (m *ErrorResponder) BadRequest(w http.ResponseWriter, err error) {
	m.mu.Lock()
	m.BadRequestCalled = true
	m.BadRequestErr = err
	m.mu.Unlock()
	writeJSON(w, http.StatusBadRequest, `{"error":"bad request"}`)
}

// NotFound records the call and writes a 404 response.
func (m *ErrorResponder) NotFound(w http.ResponseWriter, err error) {
	m.mu.Lock()
	m.NotFoundCalled = true
	m.NotFoundErr = err
	m.mu.Unlock()
	writeJSON(w, http.StatusNotFound, `{"error":"not found"}`)
}

// InternalError records the call and writes a 500 response.
func (m *ErrorResponder) InternalError(w http.ResponseWriter, err error) {
	m.mu.Lock()
	m.InternalCalled = true
	m.InternalErr = err
	m.mu.Unlock()
	writeJSON(w, http.StatusInternalServerError, `{"error":"internal server error"}`)
}

// Reset clears all recorded state.
func (m *ErrorResponder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UnauthorizedCalled = false
	m.UnauthorizedErr = nil
	m.BadRequestCalled = false
	m.BadRequestErr = nil
	m.NotFoundCalled = false
	m.NotFoundErr = nil
	m.InternalCalled = false
	m.InternalErr = nil
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set(api.HeaderContentType, api.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
