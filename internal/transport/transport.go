// Package transport provides the SSE-over-HTTP transport for the MCP server.
package transport

import (
	"github.com/jamesprial/pocketbase-mcp/internal/transport/transportcore"
)

// Re-export types from transportcore so callers need not import it.

// Middleware is a function that wraps an http.Handler.
type Middleware = transportcore.Middleware

// Server manages the HTTP server lifecycle.
type Server = transportcore.Server

// Router handles HTTP request routing and middleware composition.
type Router = transportcore.Router

// AuthMiddleware verifies bearer tokens on protected routes.
type AuthMiddleware = transportcore.AuthMiddleware

// ErrorResponder writes JSON error responses.
type ErrorResponder = transportcore.ErrorResponder
