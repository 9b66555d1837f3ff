package feed

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/recap/internal/livesync"
	"github.com/desertthunder/recap/internal/models"
	"github.com/desertthunder/recap/internal/shared"
	tu "github.com/desertthunder/recap/internal/testing"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var errUnavailable = errors.New("backend unavailable")

type memoryCache struct {
	mu    sync.Mutex
	items []models.Notification
	calls int
}

func (c *memoryCache) ReplaceAll(ctx context.Context, items []models.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]models.Notification(nil), items...)
	c.calls++
	return nil
}

func (c *memoryCache) snapshot() ([]models.Notification, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items, c.calls
}

func newRefresher(t *testing.T, client *tu.NotificationClient, cache Cache) (*Refresher, *livesync.Store, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	store := livesync.NewStore(clock)
	r, err := NewRefresher(Opts{
		Client:     client,
		Store:      store,
		Cache:      cache,
		RetryDelay: time.Second,
		Clock:      clock,
		Logger:     log.New(io.Discard),
	})
	require.NoError(t, err)
	return r, store, clock
}

func TestNewRefresherRequiresDependencies(t *testing.T) {
	_, err := NewRefresher(Opts{})
	assert.ErrorIs(t, err, shared.ErrMissingArgument)
}

func TestReload(t *testing.T) {
	client := tu.NewNotificationClient(
		models.Notification{ID: "n1", Title: "Ready"},
		models.Notification{ID: "n2", Title: "Failed", Read: true},
	)
	cache := &memoryCache{}
	r, store, _ := newRefresher(t, client, cache)

	store.MarkFeedStale()
	page, err := r.Reload(context.Background())
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 1, page.UnreadCount)

	feed := store.Feed()
	assert.False(t, feed.Stale())
	assert.Len(t, feed.Page.Items, 2)

	items, calls := cache.snapshot()
	assert.Len(t, items, 2)
	assert.Equal(t, 1, calls)
}

func TestReloadError(t *testing.T) {
	client := tu.NewNotificationClient()
	client.SetError(errUnavailable)
	r, store, _ := newRefresher(t, client, nil)

	store.MarkFeedStale()
	_, err := r.Reload(context.Background())
	assert.ErrorIs(t, err, errUnavailable)
	assert.True(t, store.Feed().Stale())
}

func TestMarkRead(t *testing.T) {
	client := tu.NewNotificationClient(models.Notification{ID: "n1"})
	r, store, _ := newRefresher(t, client, nil)
	ctx := context.Background()

	require.NoError(t, r.MarkRead(ctx, "n1"))
	assert.True(t, store.Feed().Stale())

	require.NoError(t, r.MarkAllRead(ctx))
	assert.Equal(t, uint64(2), store.Feed().Requested)
	assert.Equal(t, []string{"n1", "*"}, client.Reads())

	assert.ErrorIs(t, r.MarkRead(ctx, ""), shared.ErrMissingArgument)
	assert.Error(t, r.MarkRead(ctx, "missing"))
	assert.Equal(t, uint64(2), store.Feed().Requested)
}

func TestRunReloadsWhenStale(t *testing.T) {
	client := tu.NewNotificationClient(models.Notification{ID: "n1"})
	r, store, _ := newRefresher(t, client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return client.Lists() == 1 }, waitFor, tick)

	store.MarkFeedStale()
	require.Eventually(t, func() bool { return client.Lists() == 2 && !store.Feed().Stale() }, waitFor, tick)

	store.UpsertTask("T1", models.TaskPatch{Status: models.StatusQueued})
	require.Never(t, func() bool { return client.Lists() > 2 }, 50*time.Millisecond, tick)

	cancel()
	require.NoError(t, <-done)
}

func TestRunRetriesAfterFailure(t *testing.T) {
	client := tu.NewNotificationClient(models.Notification{ID: "n1"})
	client.SetError(errUnavailable)
	r, store, clock := newRefresher(t, client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	store.MarkFeedStale()
	require.Eventually(t, func() bool { return client.Lists() >= 1 }, waitFor, tick)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	client.SetError(nil)
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return !store.Feed().Stale() }, waitFor, tick)
	assert.Len(t, store.Feed().Page.Items, 1)
}
