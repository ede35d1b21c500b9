// Package api provides shared constants for the PocketBase MCP server:
// tool names, resource identifiers, and HTTP header values used by clients.
package api

// Tool names exposed through tools/list and accepted by tools/call.
const (
	// ToolListCollections lists every PocketBase collection.
	ToolListCollections = "list_collections"

	// ToolGetRecords queries records owned by the caller.
	ToolGetRecords = "get_records"

	// ToolCreateRecord creates a record owned by the caller.
	ToolCreateRecord = "create_record"

	// ToolUpdateRecord updates a record owned by the caller.
	ToolUpdateRecord = "update_record"

	// ToolDeleteRecord deletes a record owned by the caller.
	ToolDeleteRecord = "delete_record"

	// ToolApplySchema imports the schema document into PocketBase.
	ToolApplySchema = "apply_schema"
)

// Resource identifiers.
const (
	// SchemaResourceURI identifies the schema document resource.
	SchemaResourceURI = "pocketbase://schema"
)

// SSE transport paths and parameters.
const (
	// PathSSE opens a new session stream.
	PathSSE = "/sse"

	// PathMessages receives client-to-server messages for a session.
	PathMessages = "/messages"

	// PathHealth serves liveness checks.
	PathHealth = "/health"

	// PathMetrics serves Prometheus metrics.
	PathMetrics = "/metrics"

	// QuerySessionID is the query parameter carrying the session identifier.
	QuerySessionID = "sessionId"
)

// Token type constants as defined in RFC 6750.
const (
	// BearerToken is the Bearer token type used in the Authorization header.
	BearerToken = "Bearer"
)

// HTTP header names.
const (
	// HeaderAuthorization is the Authorization HTTP header name.
	HeaderAuthorization = "Authorization"

	// HeaderWWWAuthenticate is the WWW-Authenticate HTTP header name.
	HeaderWWWAuthenticate = "WWW-Authenticate"

	// HeaderContentType is the Content-Type HTTP header name.
	HeaderContentType = "Content-Type"

	// HeaderRequestID carries the request correlation id.
	HeaderRequestID = "X-Request-ID"
)

// Content type constants.
const (
	// ContentTypeJSON is the application/json content type.
	ContentTypeJSON = "application/json"

	// ContentTypeEventStream is the text/event-stream content type used by SSE.
	ContentTypeEventStream = "text/event-stream"
)
