package repositories

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/recap/internal/livesync"
	"github.com/desertthunder/recap/internal/shared"
)

const recorderBuffer = 256

// Recorder mirrors task changes from a [livesync.Store] into a [TaskSnapshotRepository].
type Recorder struct {
	store     *livesync.Store
	snapshots *TaskSnapshotRepository
	logger    *log.Logger
}

// NewRecorder creates a [Recorder].
func NewRecorder(store *livesync.Store, snapshots *TaskSnapshotRepository, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Recorder{store: store, snapshots: snapshots, logger: logger}
}

// Restore seeds the store with every stored snapshot and returns how many were loaded.
func (r *Recorder) Restore(ctx context.Context) (int, error) {
	statuses, err := r.snapshots.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to restore task snapshots: %w", err)
	}
	r.store.Seed(statuses...)
	return len(statuses), nil
}

// Run persists task changes until ctx is done.
//
// When the subscription drops changes the whole store is written again.
func (r *Recorder) Run(ctx context.Context) error {
	changes, cancel := r.store.Subscribe(recorderBuffer)
	defer cancel()

	last := r.store.Version()
	r.syncAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if c.Version <= last {
				continue
			}

			switch {
			case c.Version > last+1:
				r.logger.Debug("recorder missed changes, resyncing", "from", last, "to", c.Version)
				r.syncAll(ctx)
			case c.Kind == livesync.ChangeTask:
				r.save(ctx, c.TaskID)
			}
			last = c.Version
		}
	}
}

func (r *Recorder) save(ctx context.Context, id string) {
	st, ok := r.store.Task(id)
	if !ok {
		return
	}
	if _, err := r.snapshots.Upsert(ctx, st); err != nil {
		r.logger.Warn("failed to record task", "task", id, "err", err)
	}
}

func (r *Recorder) syncAll(ctx context.Context) {
	for _, st := range r.store.Tasks() {
		if _, err := r.snapshots.Upsert(ctx, st); err != nil {
			r.logger.Warn("failed to record task", "task", st.ID, "err", err)
		}
	}
}
