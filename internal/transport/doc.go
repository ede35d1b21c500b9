// Package transport provides the SSE-over-HTTP transport of the MCP server.
//
// # Endpoints
//
//   - GET /sse opens a session. The stream starts with
//
//     event: endpoint
//     data: /messages?sessionId=<id>
//
//     followed by one "message" event per JSON-RPC response and a ": keep-alive"
//     comment every 15 seconds. Closing the stream removes the session.
//   - POST /messages?sessionId=<id> accepts one JSON-RPC message. 202 means
//     the message was routed; 400 a missing sessionId or invalid JSON; 404 an
//     unknown or closed session.
//   - GET /health returns {"status":"ok"} without calling PocketBase.
//   - GET /metrics serves Prometheus metrics.
//
// # Middleware Chain
//
//  1. Recovery - catches panics and returns 500 errors
//  2. Logging - request id, access log and the per-route request counter
//  3. Authentication - HS256 bearer token, /sse and /messages only, and only
//     when a JWT secret is configured
//
// The whole router is wrapped in an otelhttp handler.
//
// # Usage Example
//
//	server, _, err := transport.NewTransportServices(&transport.Config{
//		ServerConfig: cfg,
//		Sessions:     sessions,
//		Metrics:      m,
//		Logger:       logger,
//	})
//	if err != nil {
//		return err
//	}
//	go func() { _ = server.Start() }()
//	defer server.Shutdown(ctx)
package transport
