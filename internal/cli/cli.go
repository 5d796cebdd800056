// Package cli defines the dunehmr command line.
package cli

import (
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/vburojevic/dunehmr/internal/config"
)

// Set by the release build
var (
	Version = "dev"
	Commit  = "none"
)

// Globals carries the global flags and process streams into every command
type Globals struct {
	Format  string
	Level   string
	Quiet   bool
	Verbose bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config
}

// CLI is the root command tree
type CLI struct {
	Format  string `short:"f" default:"${config_format}" enum:"text,ndjson" help:"Output format (text or ndjson)"`
	Level   string `default:"${config_level}" enum:"debug,info,warn,error" help:"Minimum log level written to stderr"`
	Quiet   bool   `short:"q" help:"Suppress logging"`
	Verbose bool   `short:"v" help:"Debug logging"`

	Watch   WatchCmd   `cmd:"" help:"Connect to dune and push hot updates to the browser"`
	UI      UICmd      `cmd:"" help:"Watch with a live terminal dashboard"`
	Config  ConfigCmd  `cmd:"" help:"Show or generate configuration"`
	Schema  SchemaCmd  `cmd:"" help:"Print JSON Schema for ndjson output"`
	Sexp    SexpCmd    `cmd:"" help:"Convert between the daemon wire format and JSON"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// NewGlobalsWithConfig merges parsed flags with loaded configuration
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	g := &Globals{
		Format:  c.Format,
		Level:   c.Level,
		Quiet:   c.Quiet || cfg.Quiet,
		Verbose: c.Verbose || cfg.Verbose,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
	if g.Format == "" {
		g.Format = cfg.Format
	}
	if g.Level == "" {
		g.Level = cfg.Level
	}
	return g
}

// KongVars exposes configuration values as flag defaults. Flags given on the
// command line still win.
func KongVars(cfg *config.Config) kong.Vars {
	if cfg == nil {
		cfg = config.Default()
	}
	return kong.Vars{
		"config_format":          cfg.Format,
		"config_level":           cfg.Level,
		"config_root":            cfg.Project.Root,
		"config_socket":          cfg.RPC.Socket,
		"config_src_dir":         cfg.Project.SrcDir,
		"config_extensions":      strings.Join(cfg.Project.Extensions, ","),
		"config_listen":          cfg.Server.Listen,
		"config_reconnect_delay": cfg.RPC.ReconnectDelay.String(),
	}
}
