// Package cli provides the command-line interface for lua-reload.
// This file re-exports config types from internal/config for public API.
package cli

import (
	"github.com/zot/lua-reload/internal/config"
)

// Re-export config types for public API
type (
	Config        = config.Config
	ServerConfig  = config.ServerConfig
	LuaConfig     = config.LuaConfig
	ReloadConfig  = config.ReloadConfig
	JournalConfig = config.JournalConfig
	LoggingConfig = config.LoggingConfig
	Duration      = config.Duration
)

// Re-export config functions for public API
var (
	DefaultConfig = config.DefaultConfig
	Load          = config.Load
)
