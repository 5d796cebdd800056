package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/vburojevic/dunehmr/internal/bridge"
	"github.com/vburojevic/dunehmr/internal/domain"
	"github.com/vburojevic/dunehmr/internal/filter"
	"github.com/vburojevic/dunehmr/internal/metrics"
	"github.com/vburojevic/dunehmr/internal/output"
	"github.com/vburojevic/dunehmr/internal/rpc"
)

// BridgeFlags are shared by every command that runs a bridge
type BridgeFlags struct {
	Root           string        `short:"r" default:"${config_root}" help:"Project root (where dune-project lives)"`
	Socket         string        `default:"${config_socket}" help:"Daemon RPC socket, relative to --root"`
	SrcDir         string        `default:"${config_src_dir}" help:"Source directory to watch, relative to --root"`
	Ext            []string      `default:"${config_extensions}" help:"Source extensions served as browser modules"`
	Listen         string        `short:"l" default:"${config_listen}" help:"HMR websocket address (host:port)"`
	NoServer       bool          `help:"Do not start the HMR server"`
	NoWatch        bool          `help:"Do not watch source files for edits"`
	ReconnectDelay time.Duration `default:"${config_reconnect_delay}" help:"Retry interval while the daemon socket is missing"`
	Plugin         string        `default:"dunehmr" help:"Plugin name shown in error overlays"`
	DryRun         bool          `help:"Print the resolved settings and exit"`
}

// WatchCmd connects to the dune build daemon and drives browser reloads
type WatchCmd struct {
	BridgeFlags `embed:""`

	ClearScreen  bool          `negatable:"" default:"true" help:"Clear the terminal before printing a blocking error"`
	NoColor      bool          `help:"Disable colored output"`
	Timestamps   bool          `short:"t" help:"Prefix text output with the time of day"`
	Where        []string      `short:"w" help:"Only report diagnostics matching field<op>value (fields: severity, file, message, line, column)"`
	Dedupe       bool          `negatable:"" default:"true" help:"Collapse repeated identical warnings"`
	DedupeWindow time.Duration `default:"0s" help:"Collapse identical warnings seen within this window (0 = consecutive repeats only)"`
}

// WatchPlan is the --dry-run output
type WatchPlan struct {
	Type           string   `json:"type"` // "watch_plan"
	SchemaVersion  int      `json:"schemaVersion"`
	Root           string   `json:"root"`
	Socket         string   `json:"socket"`
	SrcDir         string   `json:"src_dir"`
	Extensions     []string `json:"extensions"`
	Listen         string   `json:"listen,omitempty"`
	Watch          bool     `json:"watch"`
	ReconnectDelay string   `json:"reconnect_delay"`
	Client         string   `json:"client"`
}

// options resolves flags and configuration into bridge options
func (f *BridgeFlags) options(globals *Globals) (bridge.Options, error) {
	root, err := filepath.Abs(f.Root)
	if err != nil {
		return bridge.Options{}, fmt.Errorf("resolve root: %w", err)
	}

	client := rpc.DefaultClientInfo()
	if cfg := globals.Config; cfg != nil {
		if cfg.RPC.ClientName != "" {
			client.Name = cfg.RPC.ClientName
		}
		if cfg.RPC.ClientVersion != "" {
			client.Version = cfg.RPC.ClientVersion
		}
		if cfg.RPC.DuneVersion != "" {
			client.DuneVersion = cfg.RPC.DuneVersion
		}
	}

	listen := f.Listen
	if f.NoServer {
		listen = ""
	}

	return bridge.Options{
		RunID:          uuid.New().String(),
		Socket:         underRoot(root, f.Socket),
		Root:           root,
		SrcDir:         underRoot(root, f.SrcDir),
		Extensions:     f.Ext,
		Listen:         listen,
		Watch:          !f.NoWatch,
		Plugin:         f.Plugin,
		Client:         client,
		ReconnectDelay: f.ReconnectDelay,
	}, nil
}

func underRoot(root, path string) string {
	if path == "" {
		return root
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// Run executes the watch command
func (c *WatchCmd) Run(globals *Globals) error {
	if err := validateFlags(globals, &c.BridgeFlags); err != nil {
		return err
	}
	opts, err := c.options(globals)
	if err != nil {
		return outputErrorCommon(globals, codeInvalidFlags, err.Error())
	}
	where, err := filter.NewWhereFilter(c.Where)
	if err != nil {
		return outputErrorCommon(globals, codeInvalidFlags, err.Error(), "e.g. --where severity=error --where file~src/ui")
	}
	if c.DryRun {
		return writePlan(globals, opts)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(globals, opts.RunID)
	defer func() { _ = logger.Sync() }()

	opts.Logger = logger
	opts.Metrics = metrics.New()
	var dedupe *filter.Dedupe
	if c.Dedupe {
		dedupe = filter.NewDedupe(c.DedupeWindow, nil)
	}
	opts.Sink = filter.NewSink(c.sink(globals), where, dedupe)

	if err := bridge.New(opts).Run(ctx); err != nil {
		_ = opts.Sink.RPCError(domain.NewRPCError(err, true))
		return outputErrorCommon(globals, codeDaemonFailed, err.Error(),
			fmt.Sprintf("start the daemon with 'dune build --watch' in %s", opts.Root))
	}
	return nil
}

func (c *WatchCmd) sink(globals *Globals) output.Sink {
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout)
	}
	tty := output.IsTerminal(globals.Stdout)
	return output.NewTextWriter(globals.Stdout, output.TextOptions{
		Color:        tty && !c.NoColor,
		Timestamp:    c.Timestamps,
		ClearOnError: tty && c.ClearScreen,
		Plugin:       c.Plugin,
	})
}

func writePlan(globals *Globals, opts bridge.Options) error {
	plan := WatchPlan{
		Type:           "watch_plan",
		SchemaVersion:  domain.SchemaVersion,
		Root:           opts.Root,
		Socket:         opts.Socket,
		SrcDir:         opts.SrcDir,
		Extensions:     opts.Extensions,
		Listen:         opts.Listen,
		Watch:          opts.Watch,
		ReconnectDelay: opts.ReconnectDelay.String(),
		Client:         opts.Client.Name + "/" + opts.Client.Version,
	}
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(plan)
	}

	w := globals.Stdout
	fmt.Fprintf(w, "Root:            %s\n", plan.Root)
	fmt.Fprintf(w, "Socket:          %s\n", plan.Socket)
	fmt.Fprintf(w, "Sources:         %s %v\n", plan.SrcDir, plan.Extensions)
	if plan.Listen != "" {
		fmt.Fprintf(w, "HMR server:      ws://%s\n", plan.Listen)
	} else {
		fmt.Fprintln(w, "HMR server:      disabled")
	}
	fmt.Fprintf(w, "Watch sources:   %t\n", plan.Watch)
	fmt.Fprintf(w, "Reconnect delay: %s\n", plan.ReconnectDelay)
	fmt.Fprintf(w, "Client:          %s\n", plan.Client)
	return nil
}
