package mcp

import (
	"context"
	"fmt"
	"sync"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
)

// Tool is one callable entry of the catalog.
type Tool interface {
	// Execute runs with arguments already validated against the input
	// schema. The result is rendered as indented JSON.
	Execute(ctx context.Context, args map[string]any) (any, error)
	Definition() ToolDefinition
}

// ToolDefinition is what tools/list advertises for a tool.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// InputSchema is a JSON Schema object; the dispatcher validates
	// arguments against it before execution.
	InputSchema map[string]any `json:"inputSchema"`
}

// ResourceProvider produces the current content of one resource.
type ResourceProvider interface {
	Read(ctx context.Context) (*Resource, error)
	Definition() ResourceDefinition
}

// Resource is the content returned by resources/read.
type Resource struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// ResourceDefinition is what resources/list advertises for a resource.
type ResourceDefinition struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ToolRegistry holds the tool catalog shared by every session.
type ToolRegistry interface {
	RegisterTool(name string, tool Tool) error
	GetTool(name string) (Tool, error)
	// ListTools returns definitions in registration order.
	ListTools() []ToolDefinition
}

// ResourceRegistry holds the resources shared by every session.
type ResourceRegistry interface {
	RegisterResource(uri string, provider ResourceProvider) error
	// GetResource reads the resource at uri.
	GetResource(ctx context.Context, uri string) (*Resource, error)
	// ListResources returns definitions in registration order.
	ListResources() []ResourceDefinition
}

// registry is an ordered, concurrency-safe map from key to entry.
type registry[V any] struct {
	kind      string
	duplicate error
	notFound  error
	mu        sync.RWMutex
	entries   map[string]V
	order     []string
}

func newRegistry[V any](kind string, duplicate, notFound error) *registry[V] {
	return &registry[V]{
		kind:      kind,
		duplicate: duplicate,
		notFound:  notFound,
		entries:   make(map[string]V),
	}
}

func (r *registry[V]) add(op, key string, v V, isNil bool) error {
	if key == "" {
		return internalerrors.New("mcp", op, internalerrors.ErrBadRequest, fmt.Errorf("%s key cannot be empty", r.kind))
	}
	if isNil {
		return internalerrors.New("mcp", op, internalerrors.ErrBadRequest, fmt.Errorf("%s cannot be nil", r.kind))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return internalerrors.New("mcp", op, internalerrors.ErrBadRequest, r.duplicate).
			WithContext(r.kind, key)
	}
	r.entries[key] = v
	r.order = append(r.order, key)
	return nil
}

func (r *registry[V]) get(op, key string) (V, error) {
	r.mu.RLock()
	v, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return v, internalerrors.New("mcp", op, internalerrors.ErrNotFound, r.notFound).
			WithContext(r.kind, key)
	}
	return v, nil
}

// values returns a snapshot in registration order.
func (r *registry[V]) values() []V {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]V, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.entries[k])
	}
	return out
}

type toolRegistry struct {
	reg *registry[Tool]
}

// NewToolRegistry returns an empty ToolRegistry.
func NewToolRegistry() ToolRegistry {
	return &toolRegistry{reg: newRegistry[Tool]("tool", ErrToolAlreadyRegistered, ErrToolNotFound)}
}

func (r *toolRegistry) RegisterTool(name string, tool Tool) error {
	return r.reg.add("RegisterTool", name, tool, tool == nil)
}

func (r *toolRegistry) GetTool(name string) (Tool, error) {
	return r.reg.get("GetTool", name)
}

func (r *toolRegistry) ListTools() []ToolDefinition {
	tools := r.reg.values()
	defs := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = t.Definition()
	}
	return defs
}

type resourceRegistry struct {
	reg *registry[ResourceProvider]
}

// NewResourceRegistry returns an empty ResourceRegistry.
func NewResourceRegistry() ResourceRegistry {
	return &resourceRegistry{reg: newRegistry[ResourceProvider]("resource", ErrResourceAlreadyRegistered, ErrResourceNotFound)}
}

func (r *resourceRegistry) RegisterResource(uri string, provider ResourceProvider) error {
	return r.reg.add("RegisterResource", uri, provider, provider == nil)
}

// GetResource reads outside the registry lock; providers may hit the
// filesystem.
func (r *resourceRegistry) GetResource(ctx context.Context, uri string) (*Resource, error) {
	provider, err := r.reg.get("GetResource", uri)
	if err != nil {
		return nil, err
	}
	res, err := provider.Read(ctx)
	if err != nil {
		return nil, internalerrors.New("mcp", "GetResource", internalerrors.ErrInternal, err).
			WithContext("resource", uri)
	}
	return res, nil
}

func (r *resourceRegistry) ListResources() []ResourceDefinition {
	providers := r.reg.values()
	defs := make([]ResourceDefinition, len(providers))
	for i, p := range providers {
		defs[i] = p.Definition()
	}
	return defs
}
