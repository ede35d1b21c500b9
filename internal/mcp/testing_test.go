package mcp

import (
	"context"
	"errors"
)

// stubTool is a configurable Tool for tests.
type stubTool struct {
	def     ToolDefinition
	execute func(ctx context.Context, args map[string]any) (any, error)
}

func (s *stubTool) Definition() ToolDefinition { return s.def }

func (s *stubTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	if s.execute == nil {
		return map[string]any{"ok": true}, nil
	}
	return s.execute(ctx, args)
}

func echoTool() *stubTool {
	return &stubTool{
		def: ToolDefinition{
			Name:        "echo",
			Description: "Echo the message",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{"type": "string"},
					"count":   map[string]any{"type": "integer", "minimum": 1},
				},
				"required": []any{"message"},
			},
		},
		execute: func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"message": args["message"]}, nil
		},
	}
}

// stubResource is a configurable ResourceProvider for tests.
type stubResource struct {
	uri  string
	text string
	err  error
}

func (s *stubResource) Definition() ResourceDefinition {
	return ResourceDefinition{URI: s.uri, Name: "stub", MimeType: "application/json"}
}

func (s *stubResource) Read(context.Context) (*Resource, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &Resource{URI: s.uri, MimeType: "application/json", Text: s.text}, nil
}

var errStub = errors.New("stub failure")
