package livesync

import (
	"testing"

	"github.com/desertthunder/recap/internal/models"
)

const (
	progressT1  = `{"code":0,"message":"","data":{"type":"progress","task_id":"T1","progress":40,"stage":"transcribing"}}`
	progressT1b = `{"code":0,"message":"","data":{"type":"progress","task_id":"T1","progress":90}}`
	completedT1 = `{"code":0,"message":"","data":{"type":"completed","task_id":"T1","title":"Keynote"}}`
	failedT1    = `{"code":1,"message":"task failed","data":{"type":"error","task_id":"T1","error":"audio too long"}}`
)

func newTestReconciler() (*Reconciler, *Store, *recordingAlerter) {
	store := NewStore(newTestClock())
	alerter := &recordingAlerter{}
	r := NewReconciler(ReconcilerOpts{
		Store:   store,
		Alerter: alerter,
		AppURL:  "https://app.example.com/",
		Logger:  quietLogger(),
	})
	return r, store, alerter
}

func TestReconciler(t *testing.T) {
	t.Run("progress then completed then late progress", func(t *testing.T) {
		r, store, _ := newTestReconciler()

		r.Handle([]byte(progressT1), nil)
		st, _ := store.Task("T1")
		if st.Status != models.StatusProcessing || st.Progress != 40 || st.Stage != "transcribing" {
			t.Fatalf("unexpected status after progress: %+v", st)
		}

		r.Handle([]byte(completedT1), nil)
		r.Handle([]byte(progressT1b), nil)

		st, _ = store.Task("T1")
		if st.Status != models.StatusCompleted || st.Progress != 100 {
			t.Errorf("expected completed at 100, got %s at %d", st.Status, st.Progress)
		}
		if st.Title != "Keynote" {
			t.Errorf("expected title from completed frame, got %q", st.Title)
		}
	})

	t.Run("completion is idempotent", func(t *testing.T) {
		r, store, alerter := newTestReconciler()

		r.Handle([]byte(completedT1), nil)
		once, _ := store.Task("T1")
		r.Handle([]byte(completedT1), nil)
		twice, _ := store.Task("T1")

		if once != twice {
			t.Errorf("expected identical state, got %+v and %+v", once, twice)
		}
		if got := store.Feed().Requested; got != 2 {
			t.Errorf("expected 2 feed reload requests, got %d", got)
		}
		if n := len(alerter.all()); n != 1 {
			t.Errorf("expected a single alert, got %d", n)
		}
	})

	t.Run("completed alert links to task", func(t *testing.T) {
		r, _, alerter := newTestReconciler()
		r.Handle([]byte(completedT1), nil)

		alerts := alerter.all()
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		a := alerts[0]
		if a.Level != AlertSuccess || a.TaskID != "T1" {
			t.Errorf("unexpected alert %+v", a)
		}
		if a.Link != "https://app.example.com/tasks/T1" {
			t.Errorf("unexpected link %q", a.Link)
		}
		if a.Message != `"Keynote" is ready` {
			t.Errorf("unexpected message %q", a.Message)
		}
	})

	t.Run("error marks failed and alerts", func(t *testing.T) {
		r, store, alerter := newTestReconciler()
		r.Handle([]byte(progressT1), nil)
		r.Handle([]byte(failedT1), nil)

		st, _ := store.Task("T1")
		if st.Status != models.StatusFailed || st.Error != "audio too long" {
			t.Errorf("expected failed with detail, got %+v", st)
		}
		if !store.Feed().Stale() {
			t.Error("expected feed reload request")
		}

		alerts := alerter.all()
		if len(alerts) != 1 || alerts[0].Level != AlertFailure {
			t.Fatalf("expected one failure alert, got %+v", alerts)
		}
		if alerts[0].Message != "Task T1: audio too long" {
			t.Errorf("unexpected message %q", alerts[0].Message)
		}
	})

	t.Run("completed after failed keeps failed", func(t *testing.T) {
		r, store, alerter := newTestReconciler()
		r.Handle([]byte(failedT1), nil)
		r.Handle([]byte(completedT1), nil)

		if st, _ := store.Task("T1"); st.Status != models.StatusFailed {
			t.Errorf("expected first terminal state to win, got %s", st.Status)
		}
		if n := len(alerter.all()); n != 1 {
			t.Errorf("expected only the failure alert, got %d", n)
		}
		if got := store.Feed().Requested; got != 2 {
			t.Errorf("expected 2 feed reload requests, got %d", got)
		}
	})

	t.Run("authenticated invokes callback only", func(t *testing.T) {
		r, store, _ := newTestReconciler()

		called := 0
		r.Handle([]byte(`{"code":0,"message":"","data":{"type":"authenticated"}}`), func() { called++ })
		if called != 1 {
			t.Errorf("expected callback once, got %d", called)
		}
		if store.Version() != 0 {
			t.Errorf("expected no store mutation, got version %d", store.Version())
		}
	})

	t.Run("notification requests reload without writing feed", func(t *testing.T) {
		r, store, alerter := newTestReconciler()
		r.Handle([]byte(`{"code":0,"message":"","data":{"type":"notification","id":"n1","title":"Quota","message":"80% used"}}`), nil)

		feed := store.Feed()
		if !feed.Stale() {
			t.Error("expected feed to be stale")
		}
		if len(feed.Page.Items) != 0 {
			t.Errorf("expected no locally created entries, got %d", len(feed.Page.Items))
		}
		if alerts := alerter.all(); len(alerts) != 1 || alerts[0].Level != AlertInfo {
			t.Errorf("expected one info alert, got %+v", alerts)
		}
	})

	t.Run("unknown and malformed frames are dropped", func(t *testing.T) {
		r, store, alerter := newTestReconciler()
		metrics := NewMetrics()
		r.metrics = metrics

		for _, frame := range []string{
			`{"code":0,"message":"","data":{"type":"subscription_sync"}}`,
			`not json`,
			`{"code":0,"message":"","data":{"type":"progress"}}`,
			`{"code":403,"message":"forbidden","data":null}`,
			``,
		} {
			r.Handle([]byte(frame), func() { t.Error("unexpected authentication") })
		}

		if store.Version() != 0 {
			t.Errorf("expected no store mutation, got version %d", store.Version())
		}
		if n := len(alerter.all()); n != 0 {
			t.Errorf("expected no alerts, got %d", n)
		}
		if got := counterValue(t, metrics.malformed); got != 3 {
			t.Errorf("expected 3 malformed frames, got %v", got)
		}
	})
}

func TestTaskLink(t *testing.T) {
	r := NewReconciler(ReconcilerOpts{Store: NewStore(nil), AppURL: "https://app.example.com"})
	if got := r.TaskLink("a b"); got != "https://app.example.com/tasks/a%20b" {
		t.Errorf("unexpected link %q", got)
	}

	r = NewReconciler(ReconcilerOpts{Store: NewStore(nil)})
	if got := r.TaskLink("T1"); got != "" {
		t.Errorf("expected no link without app url, got %q", got)
	}
}
