package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/zot/lua-reload/internal/config"
	"github.com/zot/lua-reload/internal/lua"
	"github.com/zot/lua-reload/internal/modname"
	"github.com/zot/lua-reload/internal/reloader"
)

// applyEntry resolves the entry argument into cfg. A dotted module name is
// stored as-is; a path ending in .lua has its directory appended to the
// search roots and its basename becomes the module name, so
// "examples/app.lua" runs like "app" with examples/ as an extra root.
// An empty argument leaves any configured entry in place.
func applyEntry(cfg *config.Config, arg string) error {
	if arg == "" {
		return nil
	}
	if strings.HasSuffix(arg, ".lua") {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(abs), ".lua")
		if err := modname.Check(name); err != nil {
			return fmt.Errorf("entry file %s: %w", arg, err)
		}
		cfg.Lua.Roots = append(cfg.Lua.Roots, filepath.Dir(abs))
		cfg.Lua.Entry = name
		return nil
	}
	if err := modname.Check(arg); err != nil {
		return err
	}
	cfg.Lua.Entry = arg
	return nil
}

// resolveCommand loads the configuration for a command and folds in the
// entry argument. Commands that can run without an entry (serve, mcp) pass
// require=false.
func resolveCommand(opts *rootOpts, cmd *cobra.Command, args []string, require bool) (*config.Config, error) {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	if err := applyEntry(cfg, arg); err != nil {
		return nil, err
	}
	if require && cfg.Lua.Entry == "" {
		return nil, errors.New("an entry module is required (argument or lua.entry in config)")
	}
	return cfg, nil
}

// newTrackedRuntime builds a standalone runtime with a tracking session
// enabled, giving hooks a chance to register Go modules first. Commands
// that need the full server go through server.New instead.
func newTrackedRuntime(cfg *config.Config, logger *log.Logger, hooks *Hooks) (*lua.Runtime, *reloader.Session, error) {
	rt, err := lua.NewRuntime(lua.Options{Roots: cfg.Lua.Roots, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	if hooks != nil && hooks.ConfigureRuntime != nil {
		if err := hooks.ConfigureRuntime(rt); err != nil {
			rt.Close()
			return nil, nil, err
		}
	}
	sess := reloader.NewSession(rt, reloader.WithLogger(logger))
	sess.Enable(cfg.Reload.Blacklist)
	return rt, sess, nil
}

// reportGraph logs the recorded dependency edges at debug level.
func reportGraph(sess *reloader.Session, logger *log.Logger) {
	for _, parent := range sess.Graph().Parents() {
		deps, ok := sess.Dependencies(parent)
		if !ok {
			continue
		}
		names := make([]string, len(deps))
		for i, d := range deps {
			names[i] = d.Name()
		}
		logger.Debug("module dependencies", "module", parent, "imports", names)
	}
}
