package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/vburojevic/dunehmr/internal/bridge"
	"github.com/vburojevic/dunehmr/internal/metrics"
	"github.com/vburojevic/dunehmr/internal/tui"
)

// UICmd runs the bridge behind an interactive terminal dashboard
type UICmd struct {
	BridgeFlags `embed:""`
}

// Run executes the UI command
func (c *UICmd) Run(globals *Globals) error {
	if err := validateFlags(globals, &c.BridgeFlags); err != nil {
		return err
	}
	opts, err := c.options(globals)
	if err != nil {
		return outputErrorCommon(globals, codeInvalidFlags, err.Error())
	}
	if c.DryRun {
		return writePlan(globals, opts)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the dashboard owns the terminal; log lines would tear it
	opts.Logger = zap.NewNop()
	opts.Metrics = metrics.New()

	p := tea.NewProgram(tui.New(opts.Root, opts.Plugin), tea.WithAltScreen(), tea.WithContext(ctx))
	opts.OnChange = func(s bridge.Snapshot) {
		p.Send(tui.SnapshotMsg(s))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	bridgeErr := make(chan error, 1)
	go func() {
		err := bridge.New(opts).Run(runCtx)
		bridgeErr <- err
		if err != nil {
			p.Quit()
		}
	}()

	_, uiErr := p.Run()
	cancel()
	if err := <-bridgeErr; err != nil {
		return outputErrorCommon(globals, codeDaemonFailed, err.Error(),
			fmt.Sprintf("start the daemon with 'dune build --watch' in %s", opts.Root))
	}
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", uiErr)
	}
	return nil
}
