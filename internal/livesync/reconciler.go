package livesync

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/recap/internal/models"
	"github.com/desertthunder/recap/internal/shared"
)

// AlertLevel is the severity of a user-facing [Alert].
type AlertLevel int

const (
	AlertInfo AlertLevel = iota
	AlertSuccess
	AlertFailure
)

func (l AlertLevel) String() string {
	switch l {
	case AlertSuccess:
		return "success"
	case AlertFailure:
		return "failure"
	default:
		return "info"
	}
}

// Alert is a toast-style message for the user. Link points at the task detail view when known.
type Alert struct {
	Level   AlertLevel
	Title   string
	Message string
	TaskID  string
	Link    string
}

// Alerter displays alerts. Implementations must not block: they are called while the
// connection manager holds its lock.
type Alerter interface {
	Alert(Alert)
}

// AlerterFunc adapts a function to [Alerter].
type AlerterFunc func(Alert)

func (f AlerterFunc) Alert(a Alert) { f(a) }

// ReconcilerOpts configures a [Reconciler].
type ReconcilerOpts struct {
	Store   *Store
	Alerter Alerter // nil discards alerts
	AppURL  string  // base of task deep links
	Metrics *Metrics
	Logger  *log.Logger
}

// Reconciler applies inbound push frames to a [Store].
//
// Every frame is applied independently of arrival order; the store's terminality guard
// makes late or duplicated frames harmless.
type Reconciler struct {
	store   *Store
	alerter Alerter
	appURL  string
	metrics *Metrics
	logger  *log.Logger
}

// NewReconciler creates a [Reconciler].
func NewReconciler(opts ReconcilerOpts) *Reconciler {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Alerter == nil {
		opts.Alerter = AlerterFunc(func(Alert) {})
	}
	return &Reconciler{
		store:   opts.Store,
		alerter: opts.Alerter,
		appURL:  strings.TrimRight(opts.AppURL, "/"),
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

// Handle decodes and applies one frame. onAuthenticated runs when the frame acknowledges
// authentication.
//
// Undecodable frames are logged and dropped; Handle never panics on input.
func (r *Reconciler) Handle(data []byte, onAuthenticated func()) {
	ev, err := ParseMessage(data)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrApplicationCode):
			r.logger.Warn("dropping push frame", "err", err)
		default:
			r.metrics.Malformed()
			r.logger.Warn("dropping malformed push frame", "err", err, "bytes", len(data))
		}
		return
	}
	r.Apply(ev, onAuthenticated)
}

// Apply performs the state change implied by ev.
//
// Completed and error events request a feed reload every time, but alert only when they
// made the task terminal: a repeated completion is not announced twice.
func (r *Reconciler) Apply(ev Event, onAuthenticated func()) {
	r.metrics.Message(ev.Type())

	switch e := ev.(type) {
	case AuthenticatedEvent:
		if onAuthenticated != nil {
			onAuthenticated()
		}
	case ProgressEvent:
		r.store.UpsertTask(e.TaskID, models.TaskPatch{
			Title:    e.Title,
			Status:   e.Status,
			Progress: models.Int(e.Progress),
			Stage:    e.Stage,
		})
	case CompletedEvent:
		st, applied := r.store.UpsertTask(e.TaskID, models.TaskPatch{
			Title:    e.Title,
			Status:   models.StatusCompleted,
			Progress: models.Int(100),
		})
		r.store.MarkFeedStale()
		if applied {
			r.alerter.Alert(Alert{
				Level:   AlertSuccess,
				Title:   "Task completed",
				Message: fmt.Sprintf("%s is ready", displayTitle(st)),
				TaskID:  e.TaskID,
				Link:    r.TaskLink(e.TaskID),
			})
		}
	case FailedEvent:
		msg := e.Error
		if msg == "" {
			msg = "processing failed"
		}
		st, applied := r.store.UpsertTask(e.TaskID, models.TaskPatch{
			Title:  e.Title,
			Status: models.StatusFailed,
			Error:  models.String(msg),
		})
		r.store.MarkFeedStale()
		if applied {
			r.alerter.Alert(Alert{
				Level:   AlertFailure,
				Title:   "Task failed",
				Message: fmt.Sprintf("%s: %s", displayTitle(st), msg),
				TaskID:  e.TaskID,
				Link:    r.TaskLink(e.TaskID),
			})
		}
	case NotificationEvent:
		r.store.MarkFeedStale()
		r.alerter.Alert(Alert{
			Level:   AlertInfo,
			Title:   firstNonEmpty(e.Title, "New notification"),
			Message: e.Message,
			Link:    e.Link,
		})
	case UnknownEvent:
		r.logger.Debug("ignoring push frame", "type", e.Name)
	}
}

// TaskLink returns the web app URL of a task's detail view, or "" without an app URL.
func (r *Reconciler) TaskLink(taskID string) string {
	if r.appURL == "" || taskID == "" {
		return ""
	}
	return r.appURL + "/tasks/" + url.PathEscape(taskID)
}

func displayTitle(st models.TaskLiveStatus) string {
	if st.Title != "" {
		return fmt.Sprintf("%q", st.Title)
	}
	return "Task " + st.ID
}
