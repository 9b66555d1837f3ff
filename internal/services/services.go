package services

import (
	"context"

	"github.com/desertthunder/recap/internal/models"
)

// TaskService lists and fetches transcription tasks.
type TaskService interface {
	ListTasks(ctx context.Context, filter models.TaskFilter) (*models.TaskPage, error)
	GetTask(ctx context.Context, id string) (*models.TaskSummary, error)
}

// NotificationService reads and acknowledges the notification feed.
type NotificationService interface {
	ListNotifications(ctx context.Context, p models.Pagination) (*models.NotificationPage, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Client is the full REST surface the CLI uses.
type Client interface {
	TaskService
	NotificationService
	Health(ctx context.Context) error
}

var _ Client = (*APIService)(nil)
