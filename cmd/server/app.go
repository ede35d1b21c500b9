package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jamesprial/pocketbase-mcp/internal/config"
	"github.com/jamesprial/pocketbase-mcp/internal/identity"
	"github.com/jamesprial/pocketbase-mcp/internal/logging"
	"github.com/jamesprial/pocketbase-mcp/internal/mcp"
	"github.com/jamesprial/pocketbase-mcp/internal/metrics"
	"github.com/jamesprial/pocketbase-mcp/internal/pocketbase"
	"github.com/jamesprial/pocketbase-mcp/internal/schema"
	"github.com/jamesprial/pocketbase-mcp/internal/session"
	"github.com/jamesprial/pocketbase-mcp/internal/tools"
	"github.com/jamesprial/pocketbase-mcp/internal/transport"
	"github.com/jamesprial/pocketbase-mcp/internal/transport/stdio"
)

const (
	shutdownTimeout = 30 * time.Second

	instructions = "Tools operate on PocketBase collections. Pass your own stable user_id " +
		"with every record call; records you create are owned by that id and only " +
		"visible to it. Use list_collections to discover collection names and " +
		"read pocketbase://schema for the current schema document."
)

// app holds the wired components shared by every command.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	client     *pocketbase.HTTPClient
	dispatcher *mcp.Dispatcher
	factory    mcp.HandlerFactory
}

func newApp(v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("service", serverName))
	logger.Debug("configuration loaded", zap.Stringer("config", cfg))

	m := metrics.New()

	client := pocketbase.NewClient(cfg.PocketBaseURL,
		pocketbase.WithTimeout(cfg.BackendTimeout),
		pocketbase.WithLogger(logger.Named("pocketbase")),
	)

	resolver := identity.NewResolver(client, identity.Config{
		UsersCollection: cfg.UsersCollection,
		LookupField:     cfg.LookupField,
		CacheSize:       cfg.IdentityCacheSize,
		CacheTTL:        cfg.IdentityCacheTTL,
	}, identity.WithLogger(logger.Named("identity")), identity.WithMetrics(m))

	toolRegistry, resourceRegistry, dispatcher := mcp.NewMCPServices(
		mcp.WithLogger(logger.Named("mcp")),
		mcp.WithMetrics(m),
	)
	if err := tools.Register(toolRegistry, resourceRegistry, &tools.Deps{
		Client:     client,
		Resolver:   resolver,
		OwnerField: cfg.OwnerField,
		SchemaPath: cfg.SchemaPath,
		Logger:     logger.Named("tools"),
	}); err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("register tools: %w", err)
	}

	factory := mcp.NewHandlerFactory(&mcp.Config{
		ServerName:    serverName,
		ServerVersion: serverVersion,
		Instructions:  instructions,
	}, dispatcher, resourceRegistry)

	return &app{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		client:     client,
		dispatcher: dispatcher,
		factory:    factory,
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// authenticate logs in as superuser when credentials are configured.
func (a *app) authenticate(ctx context.Context) error {
	if !a.cfg.AdminAuthEnabled() {
		return nil
	}
	if err := a.client.AuthenticateAdmin(ctx, a.cfg.AdminEmail, a.cfg.AdminPassword); err != nil {
		return fmt.Errorf("admin authentication: %w", err)
	}
	a.logger.Info("authenticated as superuser", zap.String("email", a.cfg.AdminEmail))
	return nil
}

func (a *app) applySchema(ctx context.Context) (*schema.Result, error) {
	return schema.Apply(ctx, a.client, a.cfg.SchemaPath)
}

// serve runs the configured transport until ctx is cancelled or the
// transport fails.
func (a *app) serve(ctx context.Context) error {
	// Admin login runs in the background; requests made before it completes
	// go out unauthenticated.
	go func() {
		if err := a.authenticate(ctx); err != nil {
			a.logger.Warn("continuing without superuser token", zap.Error(err))
		}
	}()

	switch a.cfg.Transport {
	case config.TransportSSE:
		return a.serveSSE(ctx)
	default:
		return a.serveStdio(ctx, os.Stdin, os.Stdout)
	}
}

func (a *app) serveStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	srv := stdio.NewServer(a.factory(), r, w, stdio.WithLogger(a.logger.Named("stdio")))
	defer srv.Close()

	a.logger.Info("serving MCP over stdio", zap.String("pocketbase_url", a.cfg.PocketBaseURL))
	err := srv.Serve(ctx)
	if ctx.Err() != nil {
		a.logger.Info("stdio transport stopped", zap.Error(context.Cause(ctx)))
		return nil
	}
	return err
}

func (a *app) serveSSE(ctx context.Context) error {
	sessions := session.NewManager(a.factory,
		session.WithLogger(a.logger.Named("session")),
		session.WithMetrics(a.metrics),
	)

	server, router, err := transport.NewTransportServices(&transport.Config{
		ServerConfig: a.cfg,
		Sessions:     sessions,
		Metrics:      a.metrics,
		Logger:       a.logger.Named("http"),
	})
	if err != nil {
		return fmt.Errorf("wire transport: %w", err)
	}

	a.logger.Info("serving MCP over SSE",
		zap.String("addr", a.cfg.Addr),
		zap.String("pocketbase_url", a.cfg.PocketBaseURL),
		zap.Strings("routes", router.Routes()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down", zap.Int("sessions", sessions.Count()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("server stopped gracefully")
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
