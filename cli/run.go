package cli

import (
	"github.com/spf13/cobra"
)

// newRunCmd loads an entry module once with tracking enabled. It exists for
// smoke-testing scripts and for seeing what a module pulls in.
func newRunCmd(opts *rootOpts, hooks *Hooks) *cobra.Command {
	return &cobra.Command{
		Use:   "run <entry>",
		Short: "Run an entry module with dependency tracking",
		Long: `Run imports the entry module, a dotted name resolved against the search
roots or a path to a .lua file, with dependency tracking enabled, then
exits with the script's outcome. The recorded imports are reported at
debug level (-v).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCommand(opts, cmd, args, true)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			rt, sess, err := newTrackedRuntime(cfg, logger, hooks)
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := rt.ImportModule(cfg.Lua.Entry)
			if err != nil {
				return err
			}
			logger.Debug("entry module loaded", "module", m.Name(), "file", m.File())
			reportGraph(sess, logger)
			return nil
		},
	}
}
