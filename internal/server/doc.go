// Package server exposes the live update channel's state over HTTP while the watcher runs.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Handlers
//
// [StatusHandler] serves /healthz: connectivity mode, connection state, reconnect attempts and
// task counts by status, read from the livesync store.
//
// [MetricsHandler] serves /metrics from the livesync Prometheus registry.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
