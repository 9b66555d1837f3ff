package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/recap/internal/livesync"
	"github.com/desertthunder/recap/internal/models"
)

type fakeSource struct {
	store    *livesync.Store
	state    livesync.State
	attempts int
	active   bool
}

func (f *fakeSource) State() livesync.State  { return f.state }
func (f *fakeSource) Attempts() int          { return f.attempts }
func (f *fakeSource) Active() bool           { return f.active }
func (f *fakeSource) Store() *livesync.Store { return f.store }

func newFakeSource() *fakeSource {
	store := livesync.NewStore(nil)
	store.UpsertTask("T1", models.TaskPatch{Status: models.StatusTranscribing, Progress: models.Int(40)})
	store.UpsertTask("T2", models.TaskPatch{Status: models.StatusCompleted})
	store.UpsertTask("T3", models.TaskPatch{Status: models.StatusCompleted})
	store.SetConnectivityMode(models.ModePollingFallback)
	store.MarkFeedStale()
	return &fakeSource{store: store, state: livesync.StateClosed, attempts: 10, active: true}
}

func TestBasicRouter(t *testing.T) {
	t.Run("method filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("pong"))
		}))

		tests := []struct {
			method string
			want   int
		}{
			{http.MethodGet, http.StatusOK},
			{http.MethodHead, http.StatusOK},
			{http.MethodPost, http.StatusMethodNotAllowed},
		}
		for _, tt := range tests {
			t.Run(tt.method, func(t *testing.T) {
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(tt.method, "/ping", nil))
				if rec.Code != tt.want {
					t.Errorf("expected status %d, got %d", tt.want, rec.Code)
				}
			})
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(tag("first"), tag("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second" {
			t.Errorf("expected first,second, got %v", order)
		}
	})
}

func TestStatusHandler(t *testing.T) {
	source := newFakeSource()
	router := NewStatusRouter(source, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}

	var got Status
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if got.Mode != models.ModePollingFallback {
		t.Errorf("expected polling mode, got %q", got.Mode)
	}
	if got.State != "closed" || got.Attempts != 10 || !got.Active {
		t.Errorf("unexpected connection fields %+v", got)
	}
	if got.Tasks[models.StatusCompleted] != 2 || got.Tasks[models.StatusTranscribing] != 1 {
		t.Errorf("unexpected task counts %v", got.Tasks)
	}
	if !got.Feed.Stale || got.Feed.FetchedAt != nil {
		t.Errorf("expected stale unfetched feed, got %+v", got.Feed)
	}
}

func TestMetricsRoute(t *testing.T) {
	t.Run("registered with metrics", func(t *testing.T) {
		metrics := livesync.NewMetrics()
		metrics.ConnectAttempt()
		router := NewStatusRouter(newFakeSource(), metrics)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "recap_push_connect_attempts_total 1") {
			t.Errorf("expected connect attempts counter in output:\n%s", rec.Body.String())
		}
	})

	t.Run("absent without metrics", func(t *testing.T) {
		router := NewStatusRouter(newFakeSource(), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	router := NewStatusRouter(newFakeSource(), nil, RequestID(), Logging(log.New(io.Discard)))

	t.Run("generates request ID", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Header().Get(requestIDHeader) == "" {
			t.Error("expected generated request id")
		}
	})

	t.Run("echoes request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(requestIDHeader, "abc")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if got := rec.Header().Get(requestIDHeader); got != "abc" {
			t.Errorf("expected abc, got %q", got)
		}
	})
}

func TestServeListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeListener(ctx, ln, NewStatusRouter(newFakeSource(), nil), log.New(io.Discard))
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
