package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// HandleMessage decodes one raw JSON-RPC message, runs it through h and
// encodes the response. It returns nil bytes for notifications. Malformed
// input yields a parse or invalid-request error response rather than an error;
// the returned error is reserved for encoding failures.
func HandleMessage(ctx context.Context, h Handler, raw []byte) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		return encode(errorResponse(nil, NewError(CodeInvalidRequest, "batch requests are not supported", nil)))
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return encode(errorResponse(nil, NewError(CodeParseError, "parse error", nil)))
	}

	resp, err := h.HandleRequest(ctx, &req)
	if err != nil {
		resp = errorResponse(req.ID, NewError(CodeInternalError, err.Error(), nil))
	}
	if req.IsNotification() || resp == nil {
		return nil, nil
	}
	return encode(resp)
}

func encode(resp *Response) ([]byte, error) {
	out, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}
