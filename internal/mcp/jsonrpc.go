// Package mcp implements the Model Context Protocol server core: JSON-RPC 2.0
// request handling, the tool and resource registries and the tool dispatcher
// that turns tool outcomes into result envelopes.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// ProtocolVersion is the MCP revision announced in initialize.
	ProtocolVersion = "2024-11-05"

	JSONRPCVersion = "2.0"
)

// Methods served by the handler.
const (
	MethodInitialize    = "initialize"
	MethodPing          = "ping"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"

	MethodInitialized   = "notifications/initialized"
	notificationsPrefix = "notifications/"
)

// JSON-RPC 2.0 error codes, plus the two MCP uses for unknown tools and
// resources.
const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
	CodeResourceNotFound = -32002
	CodeToolNotFound     = -32003
)

// Handler serves the requests of one client connection. Implementations
// must be safe for concurrent use since a client may have several requests
// in flight.
type Handler interface {
	// HandleRequest returns the response for req, or nil for a notification.
	// Protocol failures are reported inside the response; a non-nil error
	// means the handler itself broke.
	HandleRequest(ctx context.Context, req *Request) (*Response, error)
}

// Request is a decoded JSON-RPC request or notification.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	// ID is a string or number; absent for notifications.
	ID     any             `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response carries exactly one of Result and Error.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC error object. It doubles as a Go error so the
// dispatcher can hand protocol failures to the handler unchanged.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Cause   error  `json:"-"`
}

// NewError returns an Error with the given code, message and optional data.
func NewError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("JSON-RPC error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Validate checks the envelope fields. The returned *Error is ready to be
// sent back with CodeInvalidRequest.
func (r *Request) Validate() *Error {
	switch {
	case r.JSONRPC != JSONRPCVersion:
		return NewError(CodeInvalidRequest, "invalid jsonrpc version", nil)
	case r.Method == "":
		return NewError(CodeInvalidRequest, "method is required", nil)
	}
	return nil
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == nil || strings.HasPrefix(r.Method, notificationsPrefix)
}

// IsError reports whether r carries an error.
func (r *Response) IsError() bool {
	return r.Error != nil
}

// resultResponse answers id with result.
func resultResponse(id, result any) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

// errorResponse answers id with err.
func errorResponse(id any, err *Error) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Error: err}
}
