package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/recap/internal/models"
	"github.com/desertthunder/recap/internal/shared"
)

// TaskSnapshotRepository persists [models.TaskLiveStatus] rows.
type TaskSnapshotRepository struct {
	db *sql.DB
}

// NewTaskSnapshotRepository creates a new [TaskSnapshotRepository] with the given database connection
func NewTaskSnapshotRepository(db *sql.DB) *TaskSnapshotRepository {
	return &TaskSnapshotRepository{db: db}
}

// Upsert writes st unless the stored row is already terminal. It reports whether a row changed.
func (r *TaskSnapshotRepository) Upsert(ctx context.Context, st models.TaskLiveStatus) (bool, error) {
	if st.ID == "" {
		return false, fmt.Errorf("%w: task id is required", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO task_snapshots (task_id, title, status, progress, stage, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			progress = excluded.progress,
			stage = excluded.stage,
			error = excluded.error,
			updated_at = excluded.updated_at
		WHERE task_snapshots.status NOT IN ('completed', 'failed')
	`

	result, err := r.db.ExecContext(ctx, query, st.ID, st.Title, st.Status, st.Progress, st.Stage, st.Error, st.UpdatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to upsert task snapshot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// Get retrieves the snapshot for a task.
func (r *TaskSnapshotRepository) Get(ctx context.Context, id string) (*models.TaskLiveStatus, error) {
	query := `
		SELECT task_id, title, status, progress, stage, error, updated_at
		FROM task_snapshots
		WHERE task_id = ?
	`

	st, err := scanSnapshot(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task snapshot: %w", err)
	}
	return st, nil
}

// List returns snapshots, newest first. An empty status lists every row.
func (r *TaskSnapshotRepository) List(ctx context.Context, status models.TaskStatus) ([]models.TaskLiveStatus, error) {
	query := `
		SELECT task_id, title, status, progress, stage, error, updated_at
		FROM task_snapshots
		WHERE (? = '' OR status = ?)
		ORDER BY updated_at DESC, task_id
	`

	rows, err := r.db.QueryContext(ctx, query, status, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query task snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.TaskLiveStatus
	for rows.Next() {
		st, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task snapshot: %w", err)
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task snapshots: %w", err)
	}
	return out, nil
}

// Prune deletes terminal snapshots last updated before cutoff.
func (r *TaskSnapshotRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM task_snapshots
		WHERE status IN ('completed', 'failed') AND updated_at < ?
	`

	result, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune task snapshots: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*models.TaskLiveStatus, error) {
	var (
		st     models.TaskLiveStatus
		status string
	)
	if err := row.Scan(&st.ID, &st.Title, &status, &st.Progress, &st.Stage, &st.Error, &st.UpdatedAt); err != nil {
		return nil, err
	}
	st.Status = models.TaskStatus(status)
	return &st, nil
}
