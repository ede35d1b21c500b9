package mcp

// Config holds configuration for MCP services.
type Config struct {
	// ServerName is the name of the MCP server.
	ServerName string

	// ServerVersion is the version of the MCP server.
	ServerVersion string

	// Instructions is returned from initialize to guide the client.
	Instructions string
}

// HandlerFactory builds a fresh protocol handler for a new session.
type HandlerFactory func() Handler

// NewHandler creates a new MCP protocol handler.
// The handler routes JSON-RPC requests to the dispatcher and resource registry.
func NewHandler(cfg *Config, dispatcher *Dispatcher, resourceRegistry ResourceRegistry) Handler {
	if cfg == nil {
		panic("config cannot be nil")
	}

	info := serverInfo{
		Name:         cfg.ServerName,
		Version:      cfg.ServerVersion,
		Instructions: cfg.Instructions,
	}

	return newHandler(dispatcher, resourceRegistry, info)
}

// NewHandlerFactory returns a factory producing independent handlers that
// share dispatcher and resourceRegistry.
func NewHandlerFactory(cfg *Config, dispatcher *Dispatcher, resourceRegistry ResourceRegistry) HandlerFactory {
	// Fail at wiring time rather than on the first session.
	_ = NewHandler(cfg, dispatcher, resourceRegistry)
	return func() Handler {
		return NewHandler(cfg, dispatcher, resourceRegistry)
	}
}

// NewMCPServices creates the shared registries and dispatcher.
// This is a convenience function for dependency injection.
func NewMCPServices(opts ...DispatcherOption) (ToolRegistry, ResourceRegistry, *Dispatcher) {
	toolRegistry := NewToolRegistry()
	resourceRegistry := NewResourceRegistry()
	dispatcher := NewDispatcher(toolRegistry, opts...)

	return toolRegistry, resourceRegistry, dispatcher
}
