package mcp

// Parameter and result shapes of the MCP methods the server answers.

// InitializeParams is sent by the client in initialize. Client capabilities
// are accepted but not acted on.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
}

// ClientInfo names the connecting client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult announces the protocol revision, server identity and the
// tools and resources capabilities.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      ServerInfoResponse `json:"serverInfo"`
	Capabilities    Capabilities       `json:"capabilities"`
	// Instructions tells the model how to use the tools, user_id in particular.
	Instructions string `json:"instructions,omitempty"`
}

type ServerInfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Capabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
}

// ToolsCapability is empty: the catalog is fixed for the process lifetime.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability is empty: subscriptions are not offered.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

type ToolsListResult struct {
	Tools []ToolDefinition `json:"tools"`
}

type ToolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolsCallResult holds a single text item: the result JSON, or
// "Error: <message>" with IsError set. Tool failures are results, not
// protocol errors.
type ToolsCallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content is always of type "text" here.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ResourcesListResult struct {
	Resources []ResourceDefinition `json:"resources"`
}

type ResourcesReadParams struct {
	URI string `json:"uri"`
}

type ResourcesReadResult struct {
	Contents []ResourceContent `json:"contents"`
}

type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}
