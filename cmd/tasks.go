package main

import (
	"context"
	"fmt"
	"io"

	"github.com/desertthunder/recap/internal/formatter"
	"github.com/desertthunder/recap/internal/models"
	"github.com/desertthunder/recap/internal/repositories"
	"github.com/desertthunder/recap/internal/shared"
	"github.com/urfave/cli/v3"
)

func parseStatus(s string) (models.TaskStatus, error) {
	status := models.TaskStatus(s)
	if s != "" && !status.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", shared.ErrInvalidFlag, s)
	}
	return status, nil
}

// TasksList lists tasks from the REST API.
func (r *Runner) TasksList(ctx context.Context, cmd *cli.Command) error {
	status, err := parseStatus(cmd.String("status"))
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	r.logger.Info("listing tasks", "status", status)

	page, err := r.api.ListTasks(ctx, models.TaskFilter{
		Status:   status,
		Page:     int(cmd.Int("page")),
		PageSize: int(cmd.Int("page-size")),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(page, true)
	}

	if err := formatter.WriteTaskSummaries(r.output, page.Items, format, r.now()); err != nil {
		return err
	}
	if format == formatter.FormatTable && page.HasMore() {
		r.writePlain("Page %d of %d tasks, use --page %d for more\n", page.Page, page.Total, page.Page+1)
	}
	return nil
}

// TasksShow prints one task.
func (r *Runner) TasksShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: task id", shared.ErrMissingArgument)
	}

	task, err := r.api.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(task, true)
	}
	return formatter.WriteTaskDetail(r.output, *task, r.now())
}

// TasksHistory lists snapshots from the local database.
func (r *Runner) TasksHistory(ctx context.Context, cmd *cli.Command) error {
	status, err := parseStatus(cmd.String("status"))
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewTaskSnapshotRepository(db)

	if age := cmd.Duration("prune"); age > 0 {
		n, err := repo.Prune(ctx, r.now().Add(-age))
		if err != nil {
			return err
		}
		r.logger.Info("pruned task snapshots", "count", n)
	}

	snapshots, err := repo.List(ctx, status)
	if err != nil {
		return err
	}

	write := func(w io.Writer) error {
		return formatter.WriteLiveTasks(w, snapshots, format, r.now())
	}

	if out := cmd.String("output"); out != "" {
		if err := formatter.WriteFile(out, write); err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %d tasks to %s\n", len(snapshots), out)
	}
	return write(r.output)
}
