package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zot/lua-reload/internal/server"
)

// newServeCmd starts the reload server and blocks until interrupted.
func newServeCmd(opts *rootOpts, hooks *Hooks) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [entry]",
		Short: "Start the reload server",
		Long: `Serve imports the entry module, if given, then exposes the runtime over
HTTP and WebSocket until the process receives SIGINT or SIGTERM. Reloads
requested over the API are recorded in the journal.`,
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

			url, err := srv.Start()
			if err != nil {
				return err
			}
			logger.Info("reload server running", "url", url)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
