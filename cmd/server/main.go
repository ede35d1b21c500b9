// Package main provides the pocketbase-mcp entry point.
// It wires the backend client, identity resolver, tools and the selected
// transport, and manages the server lifecycle with graceful shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jamesprial/pocketbase-mcp/internal/config"
)

const (
	serverName    = "pocketbase-mcp"
	serverVersion = "1.0.0"

	flagConfig = "config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:           serverName,
		Short:         "MCP server exposing PocketBase collections with per-user record ownership",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # stdio transport for a local MCP client
  POCKETBASE_URL=http://127.0.0.1:8090 pocketbase-mcp

  # SSE over HTTP with bearer authentication
  pocketbase-mcp --transport sse --addr :8080 --jwt-secret "$SECRET"`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString(flagConfig)
			return config.ReadFile(v, path)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(cmd.Context())
		},
	}

	pf := cmd.PersistentFlags()
	pf.String(flagConfig, "", "path to a YAML, TOML or JSON config file")
	registerConfigFlags(v, pf)

	cmd.AddCommand(newApplySchemaCommand(v), newToolsCommand(v))
	return cmd
}

func registerConfigFlags(v *viper.Viper, fs *pflag.FlagSet) {
	config.RegisterFlags(fs)
	config.BindFlags(v, fs)
}

func newApplySchemaCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "apply-schema",
		Short: "Import the schema document into PocketBase once and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()

			// Unlike the server path, a failed admin login is fatal here.
			if err := a.authenticate(cmd.Context()); err != nil {
				return err
			}
			res, err := a.applySchema(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newToolsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalog as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.close()
			return writeJSON(cmd.OutOrStdout(), a.dispatcher.Tools())
		},
	}
}
