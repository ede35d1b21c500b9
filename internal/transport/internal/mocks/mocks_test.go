package mocks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jamesprial/pocketbase-mcp/internal/mcp"
)

func TestMCPHandler_Default(t *testing.T) {
	t.Parallel()

	h := &MCPHandler{}

	resp, err := h.HandleRequest(context.Background(), &mcp.Request{JSONRPC: "2.0", ID: 1, Method: "ping"})
	if err != nil {
		t.Fatalf("HandleRequest error: %v", err)
	}
	if resp == nil || resp.ID != 1 {
		t.Errorf("HandleRequest = %+v, want response with id 1", resp)
	}

	resp, err = h.HandleRequest(context.Background(), &mcp.Request{JSONRPC: "2.0", Method: "notifications/initialized"})
	if err != nil || resp != nil {
		t.Errorf("notification = (%v, %v), want (nil, nil)", resp, err)
	}
}

func TestMCPHandler_CustomFunc(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	h := &MCPHandler{HandleFunc: func(ctx context.Context, req *mcp.Request) (*mcp.Response, error) {
		return nil, want
	}}

	if _, err := h.Factory()().HandleRequest(context.Background(), &mcp.Request{Method: "ping", ID: 1}); !errors.Is(err, want) {
		t.Errorf("HandleRequest error = %v, want %v", err, want)
	}
}

func TestErrorResponder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		call   func(m *ErrorResponder, w http.ResponseWriter, err error)
		status int
		called func(m *ErrorResponder) bool
	}{
		{"Unauthorized", (*ErrorResponder).Unauthorized, http.StatusUnauthorized, func(m *ErrorResponder) bool { return m.UnauthorizedCalled }},
		{"BadRequest", (*ErrorResponder).BadRequest, http.StatusBadRequest, func(m *ErrorResponder) bool { return m.BadRequestCalled }},
		{"NotFound", (*ErrorResponder).NotFound, http.StatusNotFound, func(m *ErrorResponder) bool { return m.NotFoundCalled }},
		{"InternalError", (*ErrorResponder).InternalError, http.StatusInternalServerError, func(m *ErrorResponder) bool { return m.InternalCalled }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := &ErrorResponder{}
			w := httptest.NewRecorder()
			tt.call(m, w, errors.New("x"))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if !tt.called(m) {
				t.Errorf("%s not recorded", tt.name)
			}

			m.Reset()
			if tt.called(m) {
				t.Errorf("Reset did not clear %s", tt.name)
			}
		})
	}
}
