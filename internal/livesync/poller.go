package livesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/recap/internal/models"
	"github.com/desertthunder/recap/internal/shared"
	"github.com/jonboulle/clockwork"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollPageSize = 50
	defaultPollMaxPages = 10
)

// TaskLister is the part of the REST client the [Poller] needs.
type TaskLister interface {
	ListTasks(ctx context.Context, filter models.TaskFilter) (*models.TaskPage, error)
}

// PollerOpts configures a [Poller].
type PollerOpts struct {
	Client    TaskLister
	Store     *Store
	Clock     clockwork.Clock
	Interval  time.Duration
	PageSize  int
	MaxPages  int
	OnSuccess func() // runs after each successful background cycle, without locks held
	Metrics   *Metrics
	Logger    *log.Logger
}

// Poller refreshes in-flight tasks over the REST API while push delivery is unavailable.
type Poller struct {
	client    TaskLister
	store     *Store
	clock     clockwork.Clock
	interval  time.Duration
	pageSize  int
	maxPages  int
	onSuccess func()
	metrics   *Metrics
	logger    *log.Logger

	mu      sync.Mutex
	running bool
	run     uint64
	ticker  clockwork.Ticker
	stopCh  chan struct{}
	cancel  context.CancelFunc
}

// NewPoller creates a stopped [Poller].
func NewPoller(opts PollerOpts) *Poller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultPollInterval
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPollPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultPollMaxPages
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Poller{
		client:    opts.Client,
		store:     opts.Store,
		clock:     opts.Clock,
		interval:  opts.Interval,
		pageSize:  opts.PageSize,
		maxPages:  opts.MaxPages,
		onSuccess: opts.OnSuccess,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// Start polls once immediately and then on every interval until [Poller.Stop] or ctx is done.
// Calling Start on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.run++

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.stopCh = make(chan struct{})
	p.ticker = p.clock.NewTicker(p.interval)

	p.logger.Info("fallback polling started", "interval", p.interval)
	go p.loop(runCtx, p.run, p.ticker, p.stopCh)
}

// Stop halts polling. Results of a cycle still in flight are discarded.
// Calling Stop on a stopped poller does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	p.ticker.Stop()
	close(p.stopCh)
	p.cancel()
	p.logger.Info("fallback polling stopped")
}

// Running reports whether the poller is started.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Poll runs one cycle outside the background schedule and applies its results.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	tasks, err := p.fetch(ctx)
	p.metrics.Poll(err)
	if err != nil {
		return 0, err
	}
	for _, t := range tasks {
		p.store.UpsertTask(t.ID, t.Patch())
	}
	return len(tasks), nil
}

func (p *Poller) loop(ctx context.Context, run uint64, ticker clockwork.Ticker, stop <-chan struct{}) {
	p.cycle(ctx, run)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.cycle(ctx, run)
		}
	}
}

func (p *Poller) cycle(ctx context.Context, run uint64) {
	tasks, err := p.fetch(ctx)
	p.metrics.Poll(err)
	if err != nil {
		p.logger.Debug("poll failed, retrying next tick", "err", err)
		return
	}

	if !p.apply(run, tasks) {
		return
	}
	if p.onSuccess != nil {
		p.onSuccess()
	}
}

// apply upserts tasks unless the run that fetched them has been stopped.
func (p *Poller) apply(run uint64, tasks []models.TaskSummary) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || run != p.run {
		return false
	}
	for _, t := range tasks {
		p.store.UpsertTask(t.ID, t.Patch())
	}
	return true
}

// fetch lists in-flight tasks across pages.
func (p *Poller) fetch(ctx context.Context) ([]models.TaskSummary, error) {
	var tasks []models.TaskSummary
	for page := 1; page <= p.maxPages; page++ {
		res, err := p.client.ListTasks(ctx, models.TaskFilter{
			Status:   models.StatusProcessing,
			Page:     page,
			PageSize: p.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("listing tasks page %d: %w", page, err)
		}
		tasks = append(tasks, res.Items...)
		if !res.HasMore() {
			break
		}
	}
	return tasks, nil
}
