package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/recap/internal/formatter"
	"github.com/desertthunder/recap/internal/models"
	"github.com/desertthunder/recap/internal/repositories"
	"github.com/desertthunder/recap/internal/shared"
	"github.com/urfave/cli/v3"
)

// NotificationsList prints the first page of the feed, from the API or the local cache.
func (r *Runner) NotificationsList(ctx context.Context, cmd *cli.Command) error {
	unread := cmd.Bool("unread")
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	var items []models.Notification
	if cmd.Bool("cached") {
		items, err = r.cachedNotifications(ctx, unread)
		if err != nil {
			return err
		}
	} else {
		page, err := r.api.ListNotifications(ctx, models.Pagination{
			Page:       1,
			PageSize:   int(cmd.Int("page-size")),
			UnreadOnly: unread,
		})
		if err != nil {
			return err
		}
		items = page.Items

		if cmd.Bool("json") {
			return r.writeJSON(page, true)
		}
		if format == formatter.FormatTable {
			r.writePlain("%d unread of %d\n", page.UnreadCount, page.Total)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(items, true)
	}
	return formatter.WriteNotifications(r.output, items, format, r.now())
}

func (r *Runner) cachedNotifications(ctx context.Context, unread bool) ([]models.Notification, error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return repositories.NewNotificationCacheRepository(db).List(ctx, unread)
}

// NotificationsRead marks one notification as read.
func (r *Runner) NotificationsRead(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: notification id", shared.ErrMissingArgument)
	}

	if err := r.api.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Marked %s as read\n", id)
}

// NotificationsReadAll marks the whole feed as read.
func (r *Runner) NotificationsReadAll(ctx context.Context, cmd *cli.Command) error {
	if err := r.api.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Marked all notifications as read\n")
}
