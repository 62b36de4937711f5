package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newGraphCmd loads an entry module and prints its dependency graph.
func newGraphCmd(opts *rootOpts, hooks *Hooks) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "graph <entry>",
		Short: "Print the dependency graph of an entry module",
		Long: `Graph imports the entry module with tracking enabled and prints the
recorded dependency graph, Graphviz DOT by default or Mermaid with
--format mermaid.`,
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

			if _, err := rt.ImportModule(cfg.Lua.Entry); err != nil {
				return err
			}

			var text string
			switch format {
			case "dot":
				text = sess.Graph().DOT()
			case "mermaid":
				text = sess.Graph().Mermaid()
			default:
				return fmt.Errorf("unknown format %q (want dot or mermaid)", format)
			}

			if output == "" || output == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), text)
				return err
			}
			return os.WriteFile(output, []byte(text), 0o644)
		},
	}
	cmd.Flags().StringVar(&format, "format", "dot", "output format: dot or mermaid")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}
