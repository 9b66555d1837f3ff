package main

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/desertthunder/recap/internal/feed"
	"github.com/desertthunder/recap/internal/livesync"
	"github.com/desertthunder/recap/internal/repositories"
	"github.com/desertthunder/recap/internal/shared"
)

const alertBuffer = 32

// liveStack is the live update channel wired to this runner's API client and credentials.
type liveStack struct {
	store    *livesync.Store
	metrics  *livesync.Metrics // nil unless requested
	manager  *livesync.Manager
	feed     *feed.Refresher
	alerts   *livesync.ChannelAlerter
	db       *sql.DB                // nil unless recording
	recorder *repositories.Recorder // nil unless recording
}

type liveOpts struct {
	record  bool
	metrics bool
}

func (r *Runner) newLive(opts liveOpts) (*liveStack, error) {
	creds, err := r.sessionSource()
	if err != nil {
		return nil, err
	}

	live := &liveStack{
		store:  livesync.NewStore(nil),
		alerts: livesync.NewChannelAlerter(alertBuffer),
	}
	if opts.metrics {
		live.metrics = livesync.NewMetrics()
	}

	managerOpts := livesync.OptsFromConfig(r.config)
	managerOpts.Credentials = creds
	managerOpts.Client = r.api
	managerOpts.Store = live.store
	managerOpts.Alerter = live.alerts
	managerOpts.Metrics = live.metrics
	managerOpts.Logger = shared.WithLogger(r.logger, "component", "livesync")

	if live.manager, err = livesync.NewManager(managerOpts); err != nil {
		return nil, err
	}

	var cache feed.Cache
	if opts.record {
		if live.db, err = shared.OpenDatabase(r.config.Database); err != nil {
			return nil, err
		}
		live.recorder = repositories.NewRecorder(
			live.store,
			repositories.NewTaskSnapshotRepository(live.db),
			shared.WithLogger(r.logger, "component", "recorder"),
		)
		cache = repositories.NewNotificationCacheRepository(live.db)
	}

	live.feed, err = feed.NewRefresher(feed.Opts{
		Client:    r.api,
		Store:     live.store,
		Cache:     cache,
		RateLimit: r.config.API.RateLimit,
		Logger:    shared.WithLogger(r.logger, "component", "feed"),
	})
	if err != nil {
		live.Close()
		return nil, err
	}
	return live, nil
}

// Close releases the database handle when recording.
func (l *liveStack) Close() {
	if l.db != nil {
		l.db.Close()
	}
}

// lockPath places the single-instance lock next to the database.
func lockPath(cfg *shared.Config) string {
	return filepath.Join(filepath.Dir(shared.ExpandHome(cfg.Database.Path)), ".recap.lock")
}

func alertPrefix(level livesync.AlertLevel) string {
	switch level {
	case livesync.AlertSuccess:
		return "✓"
	case livesync.AlertFailure:
		return "✗"
	default:
		return "•"
	}
}

func describeAlert(a livesync.Alert) string {
	s := fmt.Sprintf("%s %s", alertPrefix(a.Level), a.Title)
	if a.Message != "" {
		s += ": " + a.Message
	}
	if a.Link != "" {
		s += " (" + a.Link + ")"
	}
	return s
}
