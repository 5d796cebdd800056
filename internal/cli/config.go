package cli

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/vburojevic/dunehmr/internal/config"
	"github.com/vburojevic/dunehmr/internal/domain"
	"github.com/vburojevic/dunehmr/internal/output"
)

// ConfigCmd groups the configuration subcommands
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"1" help:"Show the effective configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show which configuration file is used"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print a sample configuration file"`
}

// ConfigShowCmd prints every configuration key
type ConfigShowCmd struct{}

// ConfigOutput is the ndjson form of config show
type ConfigOutput struct {
	Type          string            `json:"type"` // "config"
	SchemaVersion int               `json:"schemaVersion"`
	File          string            `json:"file,omitempty"`
	Values        map[string]string `json:"values"`
}

type configRow struct {
	key   string
	value string
}

func configRows(cfg *config.Config) []configRow {
	return []configRow{
		{"format", cfg.Format},
		{"level", cfg.Level},
		{"quiet", fmt.Sprint(cfg.Quiet)},
		{"verbose", fmt.Sprint(cfg.Verbose)},
		{"rpc.socket", cfg.RPC.Socket},
		{"rpc.reconnect_delay", cfg.RPC.ReconnectDelay.String()},
		{"rpc.client_name", cfg.RPC.ClientName},
		{"rpc.client_version", cfg.RPC.ClientVersion},
		{"rpc.dune_version", cfg.RPC.DuneVersion},
		{"project.root", cfg.Project.Root},
		{"project.src_dir", cfg.Project.SrcDir},
		{"project.build_dir", cfg.Project.BuildDir},
		{"project.extensions", strings.Join(cfg.Project.Extensions, ",")},
		{"server.listen", cfg.Server.Listen},
	}
}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}
	rows := configRows(cfg)
	file := config.ConfigFile()

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(ConfigOutput{
			Type:          "config",
			SchemaVersion: domain.SchemaVersion,
			File:          file,
			Values: lo.SliceToMap(rows, func(r configRow) (string, string) {
				return r.key, r.value
			}),
		})
	}

	fmt.Fprintln(globals.Stdout, "Current Configuration:")
	if file != "" {
		fmt.Fprintf(globals.Stdout, "(from %s)\n", file)
	}
	table := tablewriter.NewWriter(globals.Stdout)
	table.Header("Key", "Value")
	for _, r := range rows {
		if err := table.Append([]string{r.key, r.value}); err != nil {
			return err
		}
	}
	return table.Render()
}

// ConfigPathCmd shows the config file in use
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(map[string]any{
			"type":          "config_path",
			"schemaVersion": domain.SchemaVersion,
			"path":          path,
			"found":         path != "",
		})
	}

	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found")
		fmt.Fprintln(globals.Stdout, "Searched for dunehmr.yaml and .dunehmr.yaml in /etc/dunehmr, the user config directory, $HOME and the working directory")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}

// ConfigGenerateCmd prints a commented sample file
type ConfigGenerateCmd struct{}

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	d := config.Default()
	exts := lo.Map(d.Project.Extensions, func(e string, _ int) string {
		return "    - " + e
	})

	fmt.Fprintf(globals.Stdout, `# dunehmr configuration file
# Save as dunehmr.yaml in your project, or .dunehmr.yaml in $HOME.
# Every key can also be set as an environment variable, e.g. DUNEHMR_RPC_SOCKET.

# Output format: text or ndjson
format: %s

# Minimum log level on stderr: debug, info, warn, error
level: %s

rpc:
  # Build daemon socket, relative to project.root
  socket: %s
  # Retry interval while the socket does not exist yet
  reconnect_delay: %s
  client_name: %s
  client_version: "%s"
  dune_version: "%s"

project:
  root: %s
  src_dir: %s
  build_dir: %s
  extensions:
%s

server:
  # HMR websocket address; empty disables the server
  listen: %s
`,
		d.Format, d.Level,
		d.RPC.Socket, d.RPC.ReconnectDelay, d.RPC.ClientName, d.RPC.ClientVersion, d.RPC.DuneVersion,
		d.Project.Root, d.Project.SrcDir, d.Project.BuildDir, strings.Join(exts, "\n"),
		d.Server.Listen,
	)
	return nil
}
