// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/recap/internal/models"
)

// TaskClient is a scripted test double for the REST task listing.
//
// Items are paged according to the requested page size; a non-nil error is returned instead.
type TaskClient struct {
	mu    sync.Mutex
	items []models.TaskSummary
	err   error
	calls []models.TaskFilter
}

func NewTaskClient(items ...models.TaskSummary) *TaskClient {
	return &TaskClient{items: items}
}

func (c *TaskClient) ListTasks(ctx context.Context, filter models.TaskFilter) (*models.TaskPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, filter)
	if c.err != nil {
		return nil, c.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matched []models.TaskSummary
	for _, t := range c.items {
		if filter.Status == "" || filter.Status == models.StatusProcessing && !t.Status.IsTerminal() || t.Status == filter.Status {
			matched = append(matched, t)
		}
	}

	page, size := max(filter.Page, 1), filter.PageSize
	if size <= 0 {
		size = len(matched)
	}
	start := min((page-1)*size, len(matched))
	end := min(start+size, len(matched))

	return &models.TaskPage{
		Items:    append([]models.TaskSummary(nil), matched[start:end]...),
		Total:    len(matched),
		Page:     page,
		PageSize: size,
	}, nil
}

func (c *TaskClient) SetItems(items ...models.TaskSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
}

func (c *TaskClient) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Calls returns the number of ListTasks calls so far.
func (c *TaskClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// NotificationClient is a scripted test double for the REST notification endpoints.
type NotificationClient struct {
	mu    sync.Mutex
	items []models.Notification
	err   error
	lists int
	reads []string
}

func NewNotificationClient(items ...models.Notification) *NotificationClient {
	return &NotificationClient{items: items}
}

func (c *NotificationClient) ListNotifications(ctx context.Context, p models.Pagination) (*models.NotificationPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lists++
	if c.err != nil {
		return nil, c.err
	}

	page := &models.NotificationPage{Page: max(p.Page, 1), PageSize: p.PageSize}
	for _, n := range c.items {
		if !n.Read {
			page.UnreadCount++
		}
		if p.UnreadOnly && n.Read {
			continue
		}
		page.Items = append(page.Items, n)
	}
	page.Total = len(page.Items)
	return page, nil
}

func (c *NotificationClient) MarkNotificationRead(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Read = true
			c.reads = append(c.reads, id)
			return nil
		}
	}
	return errors.New("notification not found")
}

func (c *NotificationClient) MarkAllNotificationsRead(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	for i := range c.items {
		c.items[i].Read = true
	}
	c.reads = append(c.reads, "*")
	return nil
}

func (c *NotificationClient) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Lists returns the number of ListNotifications calls so far.
func (c *NotificationClient) Lists() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lists
}

// Reads returns the ids marked read, with "*" for mark-all.
func (c *NotificationClient) Reads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.reads...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
