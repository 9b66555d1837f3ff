package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/recap/internal/shared"
	"github.com/desertthunder/recap/internal/ui"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// TUI launches the live dashboard.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if !isTerminal(os.Stdout) {
		return fmt.Errorf("%w: the dashboard needs an interactive terminal, use 'recap watch' instead", shared.ErrInvalidArgument)
	}

	lock, err := shared.AcquireLock(lockPath(r.config))
	if err != nil {
		return err
	}
	defer lock.Unlock()

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	live, err := r.newLive(liveOpts{})
	if err != nil {
		return err
	}
	defer live.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	live.manager.Connect(ctx)
	if !live.manager.Active() {
		return fmt.Errorf("%w: run 'recap auth login' first", shared.ErrNotAuthenticated)
	}
	defer live.manager.Disconnect()

	go live.feed.Run(ctx)

	model := ui.NewModel(ui.Opts{
		Ctx:        ctx,
		Controller: live.manager,
		Feed:       live.feed,
		Alerts:     live.alerts.Alerts(),
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
