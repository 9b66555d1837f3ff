package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/recap/internal/formatter"
	"github.com/desertthunder/recap/internal/models"
)

var _ list.Item = notificationItem{}

// notificationItem wraps [models.Notification] to implement [list.Item].
type notificationItem struct {
	notification models.Notification
	now          time.Time
}

func (i notificationItem) FilterValue() string { return i.notification.Title }
func (i notificationItem) Title() string {
	if i.notification.Read {
		return i.notification.Title
	}
	return "• " + i.notification.Title
}
func (i notificationItem) Description() string {
	desc := formatter.Ago(i.notification.CreatedAt, i.now)
	if i.notification.Message != "" {
		desc = fmt.Sprintf("%s • %s", i.notification.Message, desc)
	}
	return desc
}

func notificationItems(items []models.Notification, now time.Time) []list.Item {
	out := make([]list.Item, len(items))
	for i, n := range items {
		out[i] = notificationItem{notification: n, now: now}
	}
	return out
}
