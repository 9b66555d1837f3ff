package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/desertthunder/recap/internal/credential"
	"github.com/desertthunder/recap/internal/livesync"
	"github.com/desertthunder/recap/internal/models"
	"github.com/desertthunder/recap/internal/repositories"
	"github.com/desertthunder/recap/internal/services"
	"github.com/desertthunder/recap/internal/shared"
	tu "github.com/desertthunder/recap/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

const (
	taskJSON = `{"id":"T1","title":"Lecture","status":"transcribing","progress":42.4,` +
		`"stage":"whisper","created_at":"2025-03-01T09:00:00Z","updated_at":"2025-03-01T09:58:00Z"}`
	notificationsJSON = `{"items":[` +
		`{"id":"n1","title":"Summary ready","message":"Lecture is done","is_read":false,"created_at":"2025-03-01T09:30:00Z"},` +
		`{"id":"n2","title":"Welcome","message":"Hello","is_read":true,"created_at":"2025-02-01T09:30:00Z"}` +
		`],"total":2,"unread_count":1,"page":1,"page_size":20}`
)

// fakeAPI serves the REST endpoints used by the CLI and records POSTed paths.
type fakeAPI struct {
	*httptest.Server

	mu    sync.Mutex
	posts []string
	auth  []string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	api := &fakeAPI{}
	envelope := func(w http.ResponseWriter, data string) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"code":0,"message":"ok","data":`+data+`}`)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	mux.HandleFunc("GET /api/tasks", func(w http.ResponseWriter, r *http.Request) {
		api.record(r, false)
		envelope(w, `{"items":[`+taskJSON+`],"total":1,"page":1,"page_size":20}`)
	})
	mux.HandleFunc("GET /api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		api.record(r, false)
		if r.PathValue("id") != "T1" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"code":404,"message":"task not found","data":null}`)
			return
		}
		envelope(w, taskJSON)
	})
	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		api.record(r, false)
		envelope(w, notificationsJSON)
	})
	mux.HandleFunc("POST /api/notifications/read-all", func(w http.ResponseWriter, r *http.Request) {
		api.record(r, true)
		envelope(w, "null")
	})
	mux.HandleFunc("POST /api/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		api.record(r, true)
		envelope(w, "null")
	})

	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func (f *fakeAPI) record(r *http.Request, post bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	if post {
		f.posts = append(f.posts, r.URL.Path)
	}
}

func (f *fakeAPI) Posts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posts...)
}

func (f *fakeAPI) Auth() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auth...)
}

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a reading test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestRunner(t *testing.T, baseURL string, creds *credential.Store) (*Runner, *bytes.Buffer) {
	t.Helper()

	config := shared.DefaultConfig()
	config.API.BaseURL = baseURL
	config.Database.Path = filepath.Join(t.TempDir(), "recap.db")

	output := &bytes.Buffer{}
	opts := RunnerOpts{
		Config:      config,
		Credentials: creds,
		Logger:      shared.NewLogger(io.Discard),
		Output:      output,
		Now:         func() time.Time { return testNow },
	}
	if creds == nil {
		opts.API = services.NewAPIService(services.APIServiceOpts{
			BaseURL:     baseURL,
			Credentials: credential.StaticSource{Token: &oauth2.Token{AccessToken: "secret"}},
		})
	}
	return NewRunner(opts), output
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{Name: "recap", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"recap"}, args...))
}

func TestTasksCommands(t *testing.T) {
	api := newFakeAPI(t)

	t.Run("list renders a table", func(t *testing.T) {
		r, output := newTestRunner(t, api.URL, nil)

		require.NoError(t, run(r, "tasks", "list"))
		assert.Contains(t, output.String(), "T1")
		assert.Contains(t, output.String(), "Lecture")
		assert.Contains(t, output.String(), "whisper")
		assert.Contains(t, api.Auth(), "Bearer secret")
	})

	t.Run("list as JSON", func(t *testing.T) {
		r, output := newTestRunner(t, api.URL, nil)

		require.NoError(t, run(r, "tasks", "list", "--json"))
		assert.Contains(t, output.String(), `"id": "T1"`)
		assert.Contains(t, output.String(), `"total": 1`)
	})

	t.Run("list as CSV", func(t *testing.T) {
		r, output := newTestRunner(t, api.URL, nil)

		require.NoError(t, run(r, "tasks", "list", "--format", "csv"))
		assert.Contains(t, output.String(), "T1,Lecture,transcribing,42,")
	})

	t.Run("invalid status", func(t *testing.T) {
		r, _ := newTestRunner(t, api.URL, nil)

		err := run(r, "tasks", "list", "--status", "bogus")
		assert.ErrorIs(t, err, shared.ErrInvalidFlag)
	})

	t.Run("invalid format", func(t *testing.T) {
		r, _ := newTestRunner(t, api.URL, nil)

		err := run(r, "tasks", "list", "--format", "xml")
		assert.ErrorIs(t, err, shared.ErrInvalidFlag)
	})

	t.Run("show", func(t *testing.T) {
		r, output := newTestRunner(t, api.URL, nil)

		require.NoError(t, run(r, "tasks", "show", "T1"))
		assert.Contains(t, output.String(), "Lecture")
		assert.Contains(t, output.String(), "2 minutes ago")
	})

	t.Run("show missing task", func(t *testing.T) {
		r, _ := newTestRunner(t, api.URL, nil)

		err := run(r, "tasks", "show", "T404")
		assert.ErrorIs(t, err, shared.ErrTaskNotFound)
	})

	t.Run("show without id", func(t *testing.T) {
		r, _ := newTestRunner(t, api.URL, nil)

		err := run(r, "tasks", "show")
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
	})
}

func TestTasksHistory(t *testing.T) {
	r, output := newTestRunner(t, "http://127.0.0.1:1", nil)

	db, err := shared.OpenDatabase(r.config.Database)
	require.NoError(t, err)
	repo := repositories.NewTaskSnapshotRepository(db)
	for _, st := range []models.TaskLiveStatus{
		{ID: "T1", Title: "Lecture", Status: models.StatusCompleted, Progress: 100, UpdatedAt: testNow.Add(-48 * time.Hour)},
		{ID: "T2", Title: "Podcast", Status: models.StatusTranscribing, Progress: 10, UpdatedAt: testNow.Add(-time.Minute)},
	} {
		_, err := repo.Upsert(context.Background(), st)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	t.Run("lists snapshots", func(t *testing.T) {
		output.Reset()

		require.NoError(t, run(r, "tasks", "history"))
		assert.Contains(t, output.String(), "Lecture")
		assert.Contains(t, output.String(), "Podcast")
	})

	t.Run("filters by status", func(t *testing.T) {
		output.Reset()

		require.NoError(t, run(r, "tasks", "history", "--status", "transcribing", "--format", "csv"))
		assert.Contains(t, output.String(), "T2")
		assert.NotContains(t, output.String(), "T1")
	})

	t.Run("writes to a file", func(t *testing.T) {
		output.Reset()
		path := filepath.Join(t.TempDir(), "history.md")

		require.NoError(t, run(r, "tasks", "history", "--format", "markdown", "--output", path))
		tu.AssertFileExists(t, path)
		assert.Contains(t, tu.MustReadFile(t, path), "| T1 |")
		assert.Contains(t, output.String(), "Wrote 2 tasks")
	})

	t.Run("prunes finished snapshots", func(t *testing.T) {
		output.Reset()

		require.NoError(t, run(r, "tasks", "history", "--prune", "24h", "--format", "csv"))
		assert.Contains(t, output.String(), "T2")
		assert.NotContains(t, output.String(), "T1")
	})
}

func TestNotificationsCommands(t *testing.T) {
	api := newFakeAPI(t)

	t.Run("list from the API", func(t *testing.T) {
		r, output := newTestRunner(t, api.URL, nil)

		require.NoError(t, run(r, "notifications", "list"))
		assert.Contains(t, output.String(), "1 unread of 2")
		assert.Contains(t, output.String(), "Summary ready")
	})

	t.Run("list from the cache", func(t *testing.T) {
		r, output := newTestRunner(t, api.URL, nil)

		db, err := shared.OpenDatabase(r.config.Database)
		require.NoError(t, err)
		err = repositories.NewNotificationCacheRepository(db).ReplaceAll(context.Background(), []models.Notification{
			{ID: "c1", Title: "Cached one", CreatedAt: testNow.Add(-time.Hour)},
			{ID: "c2", Title: "Cached two", Read: true, CreatedAt: testNow.Add(-2 * time.Hour)},
		})
		require.NoError(t, err)
		require.NoError(t, db.Close())

		require.NoError(t, run(r, "notif", "list", "--cached", "--unread", "--format", "csv"))
		assert.Contains(t, output.String(), "Cached one")
		assert.NotContains(t, output.String(), "Cached two")
	})

	t.Run("read", func(t *testing.T) {
		r, output := newTestRunner(t, api.URL, nil)

		require.NoError(t, run(r, "notifications", "read", "n1"))
		assert.Contains(t, output.String(), "Marked n1 as read")
		assert.Contains(t, api.Posts(), "/api/notifications/n1/read")
	})

	t.Run("read without id", func(t *testing.T) {
		r, _ := newTestRunner(t, api.URL, nil)

		err := run(r, "notifications", "read")
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
	})

	t.Run("read-all", func(t *testing.T) {
		r, output := newTestRunner(t, api.URL, nil)

		require.NoError(t, run(r, "notifications", "read-all"))
		assert.Contains(t, output.String(), "Marked all notifications as read")
		assert.Contains(t, api.Posts(), "/api/notifications/read-all")
	})
}

func TestAuthCommands(t *testing.T) {
	api := newFakeAPI(t)

	t.Run("login, status and logout", func(t *testing.T) {
		creds := credential.NewStore(keyring.NewArrayKeyring(nil), nil)
		r, output := newTestRunner(t, api.URL, creds)

		require.NoError(t, run(r, "auth", "status"))
		assert.Contains(t, output.String(), "Not signed in")
		assert.Contains(t, output.String(), "Service:        ✓")

		output.Reset()
		require.NoError(t, run(r, "auth", "login", "--token", "abc", "--expires-in", "1h"))
		assert.Contains(t, output.String(), "Signed in")

		tok, err := creds.Load()
		require.NoError(t, err)
		require.NotNil(t, tok)
		assert.Equal(t, "abc", tok.AccessToken)
		assert.True(t, tok.Expiry.Equal(testNow.Add(time.Hour)))

		output.Reset()
		require.NoError(t, run(r, "auth", "status"))
		assert.Contains(t, output.String(), "Signed in, expires")

		output.Reset()
		require.NoError(t, run(r, "auth", "logout"))
		assert.Contains(t, output.String(), "Signed out")

		tok, err = creds.Load()
		require.NoError(t, err)
		assert.Nil(t, tok)
	})

	t.Run("login requires a token", func(t *testing.T) {
		creds := credential.NewStore(keyring.NewArrayKeyring(nil), nil)
		r, _ := newTestRunner(t, api.URL, creds)

		assert.Error(t, run(r, "auth", "login"))
	})

	t.Run("without a keyring", func(t *testing.T) {
		r, output := newTestRunner(t, api.URL, nil)

		err := run(r, "auth", "login", "--token", "abc")
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)

		require.NoError(t, run(r, "auth", "status"))
		assert.Contains(t, output.String(), "Authentication: ✗")
	})
}

func TestAPICommands(t *testing.T) {
	api := newFakeAPI(t)

	t.Run("get", func(t *testing.T) {
		r, output := newTestRunner(t, api.URL, nil)

		require.NoError(t, run(r, "api", "get", "api/tasks/T1"))
		assert.Contains(t, output.String(), `"title": "Lecture"`)
	})

	t.Run("get not found", func(t *testing.T) {
		r, _ := newTestRunner(t, api.URL, nil)

		err := run(r, "api", "get", "/api/tasks/T404")
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
	})

	t.Run("post rejects invalid JSON", func(t *testing.T) {
		r, _ := newTestRunner(t, api.URL, nil)

		err := run(r, "api", "post", "--data", "{", "/api/notifications/read-all")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("post", func(t *testing.T) {
		r, output := newTestRunner(t, api.URL, nil)

		require.NoError(t, run(r, "api", "post", "--data", "{}", "/api/notifications/read-all"))
		assert.Contains(t, output.String(), `"code": 0`)
	})
}

func TestSetupCommands(t *testing.T) {
	dir := t.TempDir()
	r, output := newTestRunner(t, "http://127.0.0.1:1", nil)

	t.Run("config", func(t *testing.T) {
		path := filepath.Join(dir, "config.toml")

		require.NoError(t, run(r, "setup", "config", "--config", path))
		tu.AssertFileExists(t, path)
		assert.Contains(t, tu.MustReadFile(t, path), "[live]")

		err := run(r, "setup", "config", "--config", path)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("database without config file", func(t *testing.T) {
		output.Reset()

		require.NoError(t, run(r, "setup", "database", "--config", filepath.Join(dir, "missing.toml")))
		tu.AssertFileExists(t, r.config.Database.Path)
		assert.Contains(t, output.String(), "Database ready")
	})
}

func TestWatch(t *testing.T) {
	t.Run("requires a stored session", func(t *testing.T) {
		creds := credential.NewStore(keyring.NewArrayKeyring(nil), nil)
		r, _ := newTestRunner(t, "http://127.0.0.1:1", creds)

		err := run(r, "watch", "--for", "1s")
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})

	t.Run("requires a keyring", func(t *testing.T) {
		r, _ := newTestRunner(t, "http://127.0.0.1:1", nil)
		r.creds = nil

		err := run(r, "watch")
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	})
}

func TestPrintUpdates(t *testing.T) {
	output := &syncBuffer{}
	r := NewRunner(RunnerOpts{
		Logger: shared.NewLogger(io.Discard),
		Output: output,
		Now:    func() time.Time { return testNow },
	})

	store := livesync.NewStore(nil)
	alerts := make(chan livesync.Alert, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.printUpdates(ctx, store, alerts) }()

	require.Eventually(t, func() bool {
		return strings.Contains(output.String(), "10:00:00 mode: offline")
	}, 2*time.Second, 5*time.Millisecond)

	store.SetConnectivityMode(models.ModePushConnected)
	store.UpsertTask("T1", models.TaskPatch{Status: models.StatusTranscribing, Progress: models.Int(50)})
	alerts <- livesync.Alert{Level: livesync.AlertSuccess, Title: "Task completed", Message: "Lecture", Link: "https://app/tasks/T1"}

	require.Eventually(t, func() bool {
		s := output.String()
		return strings.Contains(s, "mode: live") &&
			strings.Contains(s, "T1 transcribing") &&
			strings.Contains(s, "✓ Task completed: Lecture (https://app/tasks/T1)")
	}, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, output.String(), "50%")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("printUpdates did not return after cancel")
	}
}

func TestDescribeAlert(t *testing.T) {
	tests := []struct {
		alert livesync.Alert
		want  string
	}{
		{livesync.Alert{Level: livesync.AlertSuccess, Title: "Done"}, "✓ Done"},
		{livesync.Alert{Level: livesync.AlertFailure, Title: "Failed", Message: "bad audio"}, "✗ Failed: bad audio"},
		{livesync.Alert{Title: "Note", Link: "/n/1"}, "• Note (/n/1)"},
	}

	for _, tt := range tests {
		if got := describeAlert(tt.alert); got != tt.want {
			t.Errorf("describeAlert(%+v) = %q, want %q", tt.alert, got, tt.want)
		}
	}
}

func TestLockPath(t *testing.T) {
	config := shared.DefaultConfig()
	config.Database.Path = "/var/lib/recap/recap.db"

	if got := lockPath(config); got != "/var/lib/recap/.recap.lock" {
		t.Errorf("unexpected lock path %q", got)
	}
}
