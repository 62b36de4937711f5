// Package main is the entry point for the lua-reload server.
// This is a thin wrapper around the cli package.
package main

import (
	"os"

	"github.com/zot/lua-reload/cli"
)

// Populated at build time through ldflags.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	cli.SetVersion(version, commit, date)
	os.Exit(cli.Run(os.Args[1:]))
}
