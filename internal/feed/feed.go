// package feed keeps the notification feed in the live update store current.
//
// The [Refresher] reacts to reload requests raised by push frames and by local
// mark-as-read actions, fetching the first page of the feed over REST.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/recap/internal/livesync"
	"github.com/desertthunder/recap/internal/models"
	"github.com/desertthunder/recap/internal/services"
	"github.com/desertthunder/recap/internal/shared"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	defaultPageSize   = 20
	defaultRetryDelay = 10 * time.Second
	changeBuffer      = 64
)

// Cache receives every fetched page.
type Cache interface {
	ReplaceAll(ctx context.Context, items []models.Notification) error
}

// Opts configures a [Refresher].
type Opts struct {
	Client     services.NotificationService
	Store      *livesync.Store
	Cache      Cache   // optional
	PageSize   int
	RateLimit  float64 // reloads per second; zero disables limiting
	RetryDelay time.Duration
	Clock      clockwork.Clock
	Logger     *log.Logger
}

// Refresher reloads the feed whenever the store marks it stale.
type Refresher struct {
	client     services.NotificationService
	store      *livesync.Store
	cache      Cache
	pageSize   int
	limiter    *rate.Limiter
	retryDelay time.Duration
	clock      clockwork.Clock
	logger     *log.Logger
}

// NewRefresher creates a [Refresher].
func NewRefresher(opts Opts) (*Refresher, error) {
	if opts.Client == nil || opts.Store == nil {
		return nil, fmt.Errorf("%w: feed refresher needs a client and a store", shared.ErrMissingArgument)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &Refresher{
		client:     opts.Client,
		store:      opts.Store,
		cache:      opts.Cache,
		pageSize:   opts.PageSize,
		limiter:    limiter,
		retryDelay: opts.RetryDelay,
		clock:      opts.Clock,
		logger:     opts.Logger,
	}, nil
}

// Run loads the feed once and then reloads it whenever it goes stale, until ctx is done.
// A failed reload is retried after the retry delay.
func (r *Refresher) Run(ctx context.Context) error {
	changes, cancel := r.store.Subscribe(changeBuffer)
	defer cancel()

	var retry <-chan time.Time
	attempt := func() {
		if _, err := r.Reload(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("feed reload failed", "err", err, "retry_in", r.retryDelay)
			retry = r.clock.After(r.retryDelay)
			return
		}
		retry = nil
	}

	attempt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if retry == nil && r.store.Feed().Stale() {
				attempt()
			}
		case <-retry:
			retry = nil
			attempt()
		}
	}
}

// Reload fetches the first page of the feed and stores it for the current reload generation.
func (r *Refresher) Reload(ctx context.Context) (models.NotificationPage, error) {
	gen := r.store.Feed().Requested

	if err := r.limiter.Wait(ctx); err != nil {
		return models.NotificationPage{}, err
	}

	page, err := r.client.ListNotifications(ctx, models.Pagination{Page: 1, PageSize: r.pageSize})
	if err != nil {
		return models.NotificationPage{}, fmt.Errorf("failed to load notifications: %w", err)
	}

	if !r.store.SetFeed(gen, *page) {
		r.logger.Debug("discarded outdated feed page", "generation", gen)
	}
	if r.cache != nil {
		if err := r.cache.ReplaceAll(ctx, page.Items); err != nil {
			r.logger.Warn("failed to cache notifications", "err", err)
		}
	}
	return *page, nil
}

// MarkRead acknowledges one notification and requests a reload.
func (r *Refresher) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: notification id", shared.ErrMissingArgument)
	}
	if err := r.client.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	r.store.MarkFeedStale()
	return nil
}

// MarkAllRead acknowledges the whole feed and requests a reload.
func (r *Refresher) MarkAllRead(ctx context.Context) error {
	if err := r.client.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}
	r.store.MarkFeedStale()
	return nil
}
