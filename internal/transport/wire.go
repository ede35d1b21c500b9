package transport

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/jamesprial/pocketbase-mcp/internal/config"
	"github.com/jamesprial/pocketbase-mcp/internal/logging"
	"github.com/jamesprial/pocketbase-mcp/internal/metrics"
	"github.com/jamesprial/pocketbase-mcp/internal/session"
	"github.com/jamesprial/pocketbase-mcp/internal/transport/internal/handlers"
	transporthttp "github.com/jamesprial/pocketbase-mcp/internal/transport/internal/http"
	"github.com/jamesprial/pocketbase-mcp/internal/transport/internal/middleware"
	"github.com/jamesprial/pocketbase-mcp/pkg/api"
)

// ServiceName names the server in traces and the WWW-Authenticate realm.
const ServiceName = "pocketbase-mcp"

// NewServer creates a configured HTTP server. onShutdown hooks run when
// shutdown begins.
func NewServer(cfg *config.Config, handler http.Handler, onShutdown ...func()) Server {
	return transporthttp.NewServer(cfg, handler, onShutdown...)
}

// NewRouter creates a new HTTP router backed by http.ServeMux.
func NewRouter() Router {
	return transporthttp.NewRouter()
}

// NewAuthMiddleware creates HS256 bearer-token middleware.
func NewAuthMiddleware(secret []byte, responder ErrorResponder) AuthMiddleware {
	return middleware.NewAuthMiddleware(secret, responder)
}

// NewErrorResponder creates the JSON error responder.
func NewErrorResponder(logger *zap.Logger) ErrorResponder {
	return transporthttp.NewErrorResponder(ServiceName, logger)
}

// NewSSEHandler creates the GET /sse handler.
func NewSSEHandler(sessions *session.Manager, responder ErrorResponder, logger *zap.Logger, keepAlive time.Duration) http.Handler {
	return handlers.NewSSEHandler(sessions, responder, logger, keepAlive)
}

// NewMessagesHandler creates the POST /messages handler.
func NewMessagesHandler(sessions *session.Manager, responder ErrorResponder, logger *zap.Logger) http.Handler {
	return handlers.NewMessagesHandler(sessions, responder, logger)
}

// NewHealthHandler creates the health check handler.
func NewHealthHandler(logger *zap.Logger) http.Handler {
	return handlers.NewHealthHandler(logger)
}

// NewLoggingMiddleware creates request logging middleware.
func NewLoggingMiddleware(logger *zap.Logger, m *metrics.Metrics) Middleware {
	return middleware.NewLoggingMiddleware(logger, m)
}

// NewRecoveryMiddleware creates panic recovery middleware.
func NewRecoveryMiddleware(responder ErrorResponder, logger *zap.Logger) Middleware {
	return middleware.NewRecoveryMiddleware(responder, logger)
}

// Config holds the configuration needed for the transport layer.
type Config struct {
	// ServerConfig supplies the listen address, timeouts and JWT secret.
	ServerConfig *config.Config

	// Sessions owns the SSE sessions.
	Sessions *session.Manager

	// Metrics is served at /metrics and fed by the logging middleware.
	// May be nil.
	Metrics *metrics.Metrics

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// KeepAlive is the SSE comment interval; zero means 15s.
	KeepAlive time.Duration
}

// NewTransportServices wires the SSE transport: routes, middleware, tracing
// and the server. /sse and /messages require a bearer token when the server
// config carries a JWT secret; /health and /metrics are always open.
func NewTransportServices(cfg *Config) (Server, Router, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.ServerConfig == nil {
		return nil, nil, fmt.Errorf("server config cannot be nil")
	}
	if cfg.Sessions == nil {
		return nil, nil, fmt.Errorf("session manager cannot be nil")
	}
	logger := logging.OrNop(cfg.Logger)

	responder := NewErrorResponder(logger)

	router := NewRouter()
	router.Use(
		NewRecoveryMiddleware(responder, logger),
		NewLoggingMiddleware(logger, cfg.Metrics),
	)

	router.Handle("GET "+api.PathHealth, NewHealthHandler(logger))
	router.Handle("GET "+api.PathMetrics, cfg.Metrics.Handler())

	sse := NewSSEHandler(cfg.Sessions, responder, logger, cfg.KeepAlive)
	messages := NewMessagesHandler(cfg.Sessions, responder, logger)
	if secret := cfg.ServerConfig.JWTSecret; secret != "" {
		auth := NewAuthMiddleware([]byte(secret), responder).Authenticate()
		sse = auth(sse)
		messages = auth(messages)
		logger.Info("bearer authentication enabled", zap.Strings("routes", []string{api.PathSSE, api.PathMessages}))
	}
	router.Handle("GET "+api.PathSSE, sse)
	router.Handle("POST "+api.PathMessages, messages)

	handler := otelhttp.NewHandler(router, ServiceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	server := NewServer(cfg.ServerConfig, handler, cfg.Sessions.CloseAll)

	return server, router, nil
}
