package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/recap/internal/formatter"
	"github.com/desertthunder/recap/internal/livesync"
	"github.com/desertthunder/recap/internal/server"
	"github.com/desertthunder/recap/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const changeBuffer = 64

// Watch runs the live update channel without a UI, printing mode changes, task progress and alerts.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	lock, err := shared.AcquireLock(lockPath(r.config))
	if err != nil {
		return err
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := cmd.Duration("for"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	serveMetrics := cmd.Bool("metrics")
	live, err := r.newLive(liveOpts{record: cmd.Bool("record"), metrics: serveMetrics})
	if err != nil {
		return err
	}
	defer live.Close()

	if live.recorder != nil {
		n, err := live.recorder.Restore(ctx)
		if err != nil {
			return err
		}
		r.logger.Info("restored task snapshots", "count", n)
	}

	g, gctx := errgroup.WithContext(ctx)

	live.manager.Connect(gctx)
	if !live.manager.Active() {
		return fmt.Errorf("%w: run 'recap auth login' first", shared.ErrNotAuthenticated)
	}
	r.logger.Info("watching for task updates", "endpoint", live.manager.Endpoint())

	g.Go(func() error {
		<-gctx.Done()
		live.manager.Disconnect()
		return nil
	})
	g.Go(func() error { return live.feed.Run(gctx) })
	g.Go(func() error { return r.printUpdates(gctx, live.store, live.alerts.Alerts()) })

	if live.recorder != nil {
		g.Go(func() error { return live.recorder.Run(gctx) })
	}

	if serveMetrics {
		addr := cmd.String("addr")
		if addr == "" {
			addr = r.config.Server.Addr()
		}
		router := server.NewStatusRouter(live.manager, live.metrics, server.RequestID(), server.Logging(r.logger))
		g.Go(func() error { return server.Serve(gctx, addr, router, r.logger) })
	}

	return g.Wait()
}

// printUpdates writes mode changes, task progress and alerts to the runner's output until ctx is done.
func (r *Runner) printUpdates(ctx context.Context, store *livesync.Store, alerts <-chan livesync.Alert) error {
	changes, cancel := store.Subscribe(changeBuffer)
	defer cancel()

	mode := store.Mode()
	r.writePlain("%s mode: %s\n", r.stamp(), mode.Label())

	for {
		select {
		case <-ctx.Done():
			return nil

		case a := <-alerts:
			r.writePlain("%s %s\n", r.stamp(), describeAlert(a))

		case c, ok := <-changes:
			if !ok {
				return nil
			}
			switch c.Kind {
			case livesync.ChangeMode:
				if m := store.Mode(); m != mode {
					mode = m
					r.writePlain("%s mode: %s\n", r.stamp(), mode.Label())
				}
			case livesync.ChangeTask:
				if t, ok := store.Task(c.TaskID); ok {
					r.writePlain("%s %s %s %s %d%%\n", r.stamp(), t.ID, t.Status, formatter.ProgressBar(t.Progress, 20), t.Progress)
				}
			}
		}
	}
}

func (r *Runner) stamp() string {
	return r.now().Format("15:04:05")
}
