package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
)

// handler is the per-connection Handler. It owns the connection's
// initialization state; the dispatcher and resources are shared.
type handler struct {
	dispatcher       *Dispatcher
	resourceRegistry ResourceRegistry
	serverInfo       serverInfo
	initialized      atomic.Bool
}

type serverInfo struct {
	Name         string
	Version      string
	Instructions string
}

// methodFunc answers one request. A non-nil *Error becomes the error response.
type methodFunc func(h *handler, ctx context.Context, params json.RawMessage) (any, *Error)

var methods = map[string]methodFunc{
	MethodInitialize:    (*handler).initialize,
	MethodPing:          (*handler).ping,
	MethodToolsList:     (*handler).toolsList,
	MethodToolsCall:     (*handler).toolsCall,
	MethodResourcesList: (*handler).resourcesList,
	MethodResourcesRead: (*handler).resourcesRead,
}

func newHandler(dispatcher *Dispatcher, resourceRegistry ResourceRegistry, info serverInfo) *handler {
	if dispatcher == nil {
		panic("dispatcher cannot be nil")
	}
	if resourceRegistry == nil {
		panic("resourceRegistry cannot be nil")
	}
	return &handler{
		dispatcher:       dispatcher,
		resourceRegistry: resourceRegistry,
		serverInfo:       info,
	}
}

// HandleRequest validates the envelope and routes req by method.
func (h *handler) HandleRequest(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return errorResponse(nil, NewError(CodeInvalidRequest, "request cannot be nil", nil)), nil
	}
	if rpcErr := req.Validate(); rpcErr != nil {
		return errorResponse(req.ID, rpcErr), nil
	}

	if strings.HasPrefix(req.Method, notificationsPrefix) {
		if req.Method == MethodInitialized {
			h.initialized.Store(true)
		}
		return nil, nil
	}

	fn, ok := methods[req.Method]
	if !ok {
		return errorResponse(req.ID, NewError(CodeMethodNotFound, "method not found: "+req.Method, nil)), nil
	}
	result, rpcErr := fn(h, ctx, req.Params)
	if rpcErr != nil {
		return errorResponse(req.ID, rpcErr), nil
	}
	return resultResponse(req.ID, result), nil
}

// Initialized reports whether the client has sent notifications/initialized.
func (h *handler) Initialized() bool {
	return h.initialized.Load()
}

// decodeParams unmarshals params into T. Absent params yield the zero value
// unless required is set.
func decodeParams[T any](method string, params json.RawMessage, required bool) (T, *Error) {
	var out T
	if len(params) == 0 {
		if required {
			return out, NewError(CodeInvalidParams, "params required", nil)
		}
		return out, nil
	}
	if err := json.Unmarshal(params, &out); err != nil {
		return out, NewError(CodeInvalidParams, fmt.Sprintf("invalid %s params", method), err.Error())
	}
	return out, nil
}

func (h *handler) initialize(_ context.Context, params json.RawMessage) (any, *Error) {
	if _, rpcErr := decodeParams[InitializeParams](MethodInitialize, params, false); rpcErr != nil {
		return nil, rpcErr
	}
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo: ServerInfoResponse{
			Name:    h.serverInfo.Name,
			Version: h.serverInfo.Version,
		},
		Capabilities: Capabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
		},
		Instructions: h.serverInfo.Instructions,
	}, nil
}

func (h *handler) ping(context.Context, json.RawMessage) (any, *Error) {
	return struct{}{}, nil
}

func (h *handler) toolsList(context.Context, json.RawMessage) (any, *Error) {
	return ToolsListResult{Tools: h.dispatcher.Tools()}, nil
}

func (h *handler) toolsCall(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, rpcErr := decodeParams[ToolsCallParams](MethodToolsCall, params, true)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if p.Name == "" {
		return nil, NewError(CodeInvalidParams, "tool name is required", nil)
	}

	result, err := h.dispatcher.Call(ctx, p.Name, p.Arguments)
	if err != nil {
		if errors.As(err, &rpcErr) {
			return nil, NewError(rpcErr.Code, rpcErr.Message, rpcErr.Data)
		}
		domainErr := internalerrors.New("mcp", "HandleRequest", internalerrors.ErrInternal, err)
		return nil, NewError(CodeInternalError, "tool dispatch failed", domainErr.Error())
	}
	return result, nil
}

func (h *handler) resourcesList(context.Context, json.RawMessage) (any, *Error) {
	return ResourcesListResult{Resources: h.resourceRegistry.ListResources()}, nil
}

func (h *handler) resourcesRead(ctx context.Context, params json.RawMessage) (any, *Error) {
	p, rpcErr := decodeParams[ResourcesReadParams](MethodResourcesRead, params, true)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if p.URI == "" {
		return nil, NewError(CodeInvalidParams, "resource uri is required", nil)
	}

	resource, err := h.resourceRegistry.GetResource(ctx, p.URI)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return nil, NewError(CodeResourceNotFound, "resource not found: "+p.URI, nil)
		}
		return nil, NewError(CodeInternalError, "failed to read resource", internalerrors.Message(err))
	}
	return ResourcesReadResult{
		Contents: []ResourceContent{{
			URI:      resource.URI,
			MimeType: resource.MimeType,
			Text:     resource.Text,
		}},
	}, nil
}
