package livesync

import (
	"slices"
	"strings"
	"sync"

	"github.com/desertthunder/recap/internal/models"
	"github.com/jonboulle/clockwork"
)

// ChangeKind identifies which part of the [Store] a [Change] touched.
type ChangeKind int

const (
	ChangeTask ChangeKind = iota + 1
	ChangeMode
	ChangeFeedStale
	ChangeFeed
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeTask:
		return "task"
	case ChangeMode:
		return "mode"
	case ChangeFeedStale:
		return "feed-stale"
	case ChangeFeed:
		return "feed"
	default:
		return "unknown"
	}
}

// Change is sent to subscribers after every committed mutation.
//
// Version increases by one per mutation across the whole store, so a subscriber that
// sees a gap knows it missed changes and should re-read everything it renders.
type Change struct {
	Kind    ChangeKind
	TaskID  string
	Version uint64
}

// Store holds task live statuses, the connectivity mode and the notification feed.
//
// Every mutation runs in a single critical section. The store never calls out to other
// components while locked; subscriber sends are non-blocking.
type Store struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	tasks   map[string]models.TaskLiveStatus
	mode    models.ConnectivityMode
	feed    models.Feed
	version uint64
	subs    map[int]chan Change
	nextSub int
}

// NewStore creates an empty store. A nil clock uses the real clock.
func NewStore(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock: clock,
		tasks: make(map[string]models.TaskLiveStatus),
		mode:  models.ModeDisconnected,
		subs:  make(map[int]chan Change),
	}
}

// UpsertTask merges patch into the entry for id, creating it if absent.
//
// Once an entry is terminal it is never modified again; the stored value is returned with
// applied set to false. A completed entry always reports progress 100.
func (s *Store) UpsertTask(id string, patch models.TaskPatch) (models.TaskLiveStatus, bool) {
	if id == "" {
		return models.TaskLiveStatus{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[id]
	if ok && cur.Status.IsTerminal() {
		return cur, false
	}
	if !ok {
		cur = models.TaskLiveStatus{ID: id, Status: models.StatusQueued}
	}

	if patch.Title != "" {
		cur.Title = patch.Title
	}
	if patch.Status != "" {
		cur.Status = patch.Status
	}
	if patch.Progress != nil {
		cur.Progress = models.ClampProgress(*patch.Progress)
	}
	if patch.Stage != nil {
		cur.Stage = *patch.Stage
	}
	if patch.Error != nil {
		cur.Error = *patch.Error
	}
	if cur.Status == models.StatusCompleted {
		cur.Progress = 100
	}
	cur.UpdatedAt = s.clock.Now()

	s.tasks[id] = cur
	s.notifyLocked(ChangeTask, id)
	return cur, true
}

// Seed inserts statuses that are not yet known, keeping their timestamps.
// Entries already in the store win.
func (s *Store) Seed(statuses ...models.TaskLiveStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range statuses {
		if st.ID == "" {
			continue
		}
		if _, ok := s.tasks[st.ID]; ok {
			continue
		}
		s.tasks[st.ID] = st
		s.notifyLocked(ChangeTask, st.ID)
	}
}

// Task returns the live status for id.
func (s *Store) Task(id string) (models.TaskLiveStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.tasks[id]
	return st, ok
}

// Tasks returns every known task, most recently updated first.
func (s *Store) Tasks() []models.TaskLiveStatus {
	s.mu.RLock()
	out := make([]models.TaskLiveStatus, 0, len(s.tasks))
	for _, st := range s.tasks {
		out = append(out, st)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.TaskLiveStatus) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// SetConnectivityMode replaces the current mode. Last write wins.
func (s *Store) SetConnectivityMode(mode models.ConnectivityMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == mode {
		return
	}
	s.mode = mode
	s.notifyLocked(ChangeMode, "")
}

// Mode returns the current connectivity mode.
func (s *Store) Mode() models.ConnectivityMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// MarkFeedStale requests a feed reload and returns the request generation.
// Requests are not deduplicated.
func (s *Store) MarkFeedStale() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.feed.Requested++
	s.notifyLocked(ChangeFeedStale, "")
	return s.feed.Requested
}

// SetFeed stores a fetched page that satisfies every reload request up to gen.
// A page fetched for an older generation than the cached one is discarded.
func (s *Store) SetFeed(gen uint64, page models.NotificationPage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen < s.feed.Fetched {
		return false
	}
	s.feed.Fetched = gen
	s.feed.Page = page
	s.feed.FetchedAt = s.clock.Now()
	s.notifyLocked(ChangeFeed, "")
	return true
}

// Feed returns the feed state and the last fetched page.
func (s *Store) Feed() models.Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()

	feed := s.feed
	feed.Page.Items = slices.Clone(s.feed.Page.Items)
	return feed
}

// Version returns the version of the latest mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers a listener with the given channel buffer.
//
// Changes that do not fit in the buffer are dropped for that subscriber only. The
// returned function unsubscribes and closes the channel; it is safe to call twice.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notifyLocked(kind ChangeKind, taskID string) {
	s.version++
	c := Change{Kind: kind, TaskID: taskID, Version: s.version}
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
