package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/desertthunder/recap/internal/livesync"
	"github.com/desertthunder/recap/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LiveSource is the part of [livesync.Manager] the status endpoint reads.
type LiveSource interface {
	State() livesync.State
	Attempts() int
	Active() bool
	Store() *livesync.Store
}

// Status is the /healthz response body.
type Status struct {
	Mode     models.ConnectivityMode   `json:"mode"`
	State    string                    `json:"state"`
	Active   bool                      `json:"active"`
	Attempts int                       `json:"reconnect_attempts"`
	Tasks    map[models.TaskStatus]int `json:"tasks"`
	Feed     FeedStatus                `json:"feed"`
	Version  uint64                    `json:"version"`
}

// FeedStatus summarizes the cached notification feed.
type FeedStatus struct {
	Stale       bool       `json:"stale"`
	UnreadCount int        `json:"unread_count"`
	FetchedAt   *time.Time `json:"fetched_at,omitempty"`
}

// StatusHandler reports the live update channel's state.
type StatusHandler struct {
	source LiveSource
}

// NewStatusHandler creates a [StatusHandler] reading from source.
func NewStatusHandler(source LiveSource) *StatusHandler {
	return &StatusHandler{source: source}
}

func (h *StatusHandler) Routes() []string {
	return []string{"/healthz"}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Snapshot())
}

// Snapshot collects the current [Status].
func (h *StatusHandler) Snapshot() Status {
	store := h.source.Store()
	status := Status{
		Mode:     store.Mode(),
		State:    h.source.State().String(),
		Active:   h.source.Active(),
		Attempts: h.source.Attempts(),
		Tasks:    map[models.TaskStatus]int{},
		Version:  store.Version(),
	}
	for _, t := range store.Tasks() {
		status.Tasks[t.Status]++
	}

	feed := store.Feed()
	status.Feed = FeedStatus{Stale: feed.Stale(), UnreadCount: feed.Page.UnreadCount}
	if !feed.FetchedAt.IsZero() {
		status.Feed.FetchedAt = &feed.FetchedAt
	}
	return status
}

// MetricsHandler exposes a Prometheus registry.
type MetricsHandler struct {
	http.Handler
}

// NewMetricsHandler serves the collectors registered on reg.
func NewMetricsHandler(reg *prometheus.Registry) *MetricsHandler {
	return &MetricsHandler{Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})}
}

func (h *MetricsHandler) Routes() []string {
	return []string{"/metrics"}
}

// NewStatusRouter builds the router served by the watcher: /healthz always, /metrics when metrics is non-nil.
func NewStatusRouter(source LiveSource, metrics *livesync.Metrics, mw ...Middleware) *BasicRouter {
	router := NewBasicRouter()
	router.Use(mw...)
	router.Mount(NewStatusHandler(source))
	if reg := metrics.Registry(); reg != nil {
		router.Mount(NewMetricsHandler(reg))
	}
	router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	}))
	return router
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
