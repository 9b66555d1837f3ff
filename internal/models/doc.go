// Package models defines the domain types shared by the live update channel, the REST client and the UI surfaces.
//
// The package contains two categories of types:
//
// 1. Wire types: shapes exchanged with the backend
//   - [Envelope] : The {code, message, data} wrapper used by REST responses and push frames
//   - [TaskSummary], [TaskPage] : Task listings returned by the REST API
//   - [Notification], [NotificationPage] : Server-originated feed entries
//
// 2. Client state: values held by the shared update store
//   - [TaskLiveStatus] : Latest known status of an in-flight task
//   - [TaskPatch] : Partial update merged into a [TaskLiveStatus]
//   - [ConnectivityMode] : Whether updates arrive via push, reconnect, or polling
//
// [TaskStatus.IsTerminal] marks completed and failed tasks; terminal statuses are never overwritten by progress updates.
package models
