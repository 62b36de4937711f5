// Package cli provides the command-line interface for lua-reload.
// It exports Run() and RunWithHooks() to allow extension by wrapper projects
// that register their own Go modules before the entry script runs.
package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/zot/lua-reload/internal/config"
	"github.com/zot/lua-reload/internal/lua"
)

var (
	version = "dev"
	commit  string
	date    string
)

// SetVersion records build metadata shown by --version. Main packages call
// this with values injected through ldflags.
func SetVersion(v, c, d string) {
	version, commit, date = v, c, d
}

// Hooks allows extending the CLI with additional behavior.
type Hooks struct {
	// ConfigureRuntime is called after the Lua runtime is created and
	// before the entry module is imported, so wrappers can register
	// their own Go modules.
	ConfigureRuntime func(rt *lua.Runtime) error

	// ExtraCommands returns additional commands to add to the root.
	ExtraCommands func() []*cobra.Command
}

// Run executes the CLI with the given arguments.
// Returns exit code (0 = success, non-zero = error).
func Run(args []string) int {
	return RunWithHooks(args, nil)
}

// RunWithHooks executes the CLI with extension hooks.
func RunWithHooks(args []string, hooks *Hooks) int {
	root := newRootCmd(hooks)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		return 1
	}
	return 0
}

// rootOpts holds the persistent flags shared by every command. Flags only
// override the loaded config when the user actually set them.
type rootOpts struct {
	configPath  string
	roots       []string
	blacklist   []string
	addr        string
	journal     string
	journalPath string
	journalURL  string
	verbosity   int
}

func newRootCmd(hooks *Hooks) *cobra.Command {
	opts := &rootOpts{}

	root := &cobra.Command{
		Use:   "lua-reload",
		Short: "Dependency-tracked hot reloading for embedded Lua",
		Long: `lua-reload runs Lua code with import tracking: every import records which
module requested it, and a reload re-executes the target's recorded
dependencies in reverse discovery order before the target itself.

The serve command exposes the runtime over HTTP and WebSocket; mcp does the
same over the Model Context Protocol on stdio.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("lua-reload %s\ncommit: %s\nbuilt: %s\n", version, commit, date))

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "TOML config file")
	pf.StringArrayVar(&opts.roots, "root", nil, "module search root (repeatable)")
	pf.StringSliceVar(&opts.blacklist, "blacklist", nil, "module names reloads never re-execute")
	pf.StringVar(&opts.addr, "addr", "", "listen address as host:port")
	pf.StringVar(&opts.journal, "journal", "", "journal backend: memory, sqlite, postgres or off")
	pf.StringVar(&opts.journalPath, "journal-path", "", "sqlite journal file")
	pf.StringVar(&opts.journalURL, "journal-url", "", "postgres journal connection URL")
	pf.CountVarP(&opts.verbosity, "verbose", "v", "log at debug level")

	root.AddCommand(newRunCmd(opts, hooks))
	root.AddCommand(newServeCmd(opts, hooks))
	root.AddCommand(newGraphCmd(opts, hooks))
	root.AddCommand(newMCPCmd(opts, hooks))
	if hooks != nil && hooks.ExtraCommands != nil {
		root.AddCommand(hooks.ExtraCommands()...)
	}
	return root
}

// loadConfig builds the effective configuration for a command invocation.
// Priority: flags > environment > config file > defaults.
func (o *rootOpts) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.Lua.Roots = o.roots
	}
	if flags.Changed("blacklist") {
		cfg.Reload.Blacklist = o.blacklist
	}
	if flags.Changed("addr") {
		host, portStr, err := net.SplitHostPort(o.addr)
		if err != nil {
			return nil, fmt.Errorf("invalid addr %q: %w", o.addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid port in addr %q", o.addr)
		}
		cfg.Server.Host = host
		cfg.Server.Port = port
	}
	if flags.Changed("journal") {
		cfg.Journal.Backend = o.journal
	}
	if flags.Changed("journal-path") {
		cfg.Journal.Path = o.journalPath
	}
	if flags.Changed("journal-url") {
		cfg.Journal.URL = o.journalURL
	}
	if o.verbosity > 0 {
		cfg.Logging.Level = "debug"
		cfg.Logging.Verbosity = o.verbosity
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the command logger. It writes to stderr so stdout stays
// clean for command output and for the MCP stdio transport.
func newLogger(cfg *config.Config) *log.Logger {
	level := log.InfoLevel
	if parsed, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		level = parsed
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}
