// Package ui implements the live dashboard using bubbletea's Elm architecture.
//
// The dashboard has two panes:
//  1. the task pane: every task in the live store with a progress bar, newest first
//  2. the notification pane: the cached first page of the feed, toggled with n
//
// The [Model] subscribes to the livesync store and re-renders on every change. Alerts raised by the
// reconciler arrive through a channel and are shown as toasts that expire after a few seconds. A badge in
// the header shows the connectivity mode (live, reconnecting, polling or offline).
//
// Keyboard bindings (r reconnect, n notifications, m mark all read, enter mark selected read, q quit) are
// listed with charmbracelet/bubbles/help.
package ui
