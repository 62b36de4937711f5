package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zot/lua-reload/internal/mcp"
	"github.com/zot/lua-reload/internal/server"
)

// newMCPCmd serves the runtime over the Model Context Protocol on stdio.
// Logging goes to stderr only; stdout carries the protocol stream.
func newMCPCmd(opts *rootOpts, hooks *Hooks) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp [entry]",
		Short: "Serve the runtime over MCP on stdio",
		Long: `Mcp imports the entry module, if given, then speaks the Model Context
Protocol on stdin/stdout so AI assistants can import and reload modules,
inspect dependencies and read the reload journal. No HTTP listener is
started.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCommand(opts, cmd, args, false)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			srv, err := server.New(cfg, logger)
			if err != nil {
				return err
			}
			if hooks != nil && hooks.ConfigureRuntime != nil {
				if err := srv.Service().Do(hooks.ConfigureRuntime); err != nil {
					return err
				}
			}
			if err := srv.ImportEntry(); err != nil {
				return err
			}

			m := mcp.New(srv.Service(), mcp.Options{Version: version, Logger: logger})
			serveErr := m.ServeStdio()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); serveErr == nil {
				serveErr = err
			}
			return serveErr
		},
	}
}
