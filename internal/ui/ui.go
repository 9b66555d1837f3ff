package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/recap/internal/livesync"
	"github.com/desertthunder/recap/internal/models"
)

const (
	toastTTL       = 5 * time.Second
	maxToasts      = 3
	changeBuffer   = 64
	defaultBarSize = 30
	titleWidth     = 28
)

// Controller is the part of [livesync.Manager] the dashboard drives.
type Controller interface {
	Reconnect(ctx context.Context)
	Store() *livesync.Store
}

// FeedActions acknowledges notifications.
type FeedActions interface {
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
}

// Opts configures a [Model].
type Opts struct {
	Ctx        context.Context
	Controller Controller
	Feed       FeedActions           // optional; disables read actions when nil
	Alerts     <-chan livesync.Alert // optional
	Now        func() time.Time
}

type toast struct {
	id    int
	alert livesync.Alert
}

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	controller  Controller
	store       *livesync.Store
	feed        FeedActions
	alerts      <-chan livesync.Alert
	changes     <-chan livesync.Change
	unsubscribe func()
	now         func() time.Time

	width    int
	height   int
	mode     models.ConnectivityMode
	tasks    []models.TaskLiveStatus
	unread   int
	showFeed bool
	feedList list.Model
	bar      progress.Model
	toasts   []toast
	nextID   int
	notice   string
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a dashboard subscribed to the controller's store. Call [Model.Close] when done.
func NewModel(opts Opts) *Model {
	if opts.Ctx == nil {
		opts.Ctx = context.Background()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	store := opts.Controller.Store()
	changes, unsubscribe := store.Subscribe(changeBuffer)

	feedList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	feedList.Title = "Notifications"
	feedList.SetShowHelp(false)

	m := &Model{
		ctx:         opts.Ctx,
		controller:  opts.Controller,
		store:       store,
		feed:        opts.Feed,
		alerts:      opts.Alerts,
		changes:     changes,
		unsubscribe: unsubscribe,
		now:         opts.Now,
		feedList:    feedList,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBarSize)),
		help:        help.New(),
		keys:        newKeyMap(),
	}
	m.refresh()
	return m
}

// Close unsubscribes from the store.
func (m *Model) Close() {
	m.unsubscribe()
}

// Init starts listening for store changes and alerts.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.waitForAlert())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, min(defaultBarSize, msg.Width-titleWidth-30))
		m.feedList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgStoreChanged:
			m.refresh()
			return m, m.waitForChange()

		case MsgAlert:
			m.nextID++
			m.toasts = append(m.toasts, toast{id: m.nextID, alert: msg.data.(livesync.Alert)})
			if len(m.toasts) > maxToasts {
				m.toasts = m.toasts[len(m.toasts)-maxToasts:]
			}
			id := m.nextID
			expire := tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg(id) })
			return m, tea.Batch(m.waitForAlert(), expire)

		case MsgToastExpired:
			id := msg.data.(int)
			for i, t := range m.toasts {
				if t.id == id {
					m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
					break
				}
			}
			return m, nil

		case MsgActionDone:
			res := msg.data.(actionResult)
			m.err = res.err
			m.notice = ""
			if res.err == nil {
				m.notice = res.label
			}
			return m, nil
		}
	}

	if m.showFeed {
		var cmd tea.Cmd
		m.feedList, cmd = m.feedList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the header, the active pane, pending toasts and help.
func (m *Model) View() string {
	var b strings.Builder

	header := styles.title.Render("recap") + "  " + styles.Badge(m.mode)
	if m.unread > 0 {
		header += "  " + styles.warn.Render(fmt.Sprintf("%d unread", m.unread))
	}
	b.WriteString(header + "\n\n")

	if m.showFeed {
		b.WriteString(m.feedList.View())
	} else {
		b.WriteString(m.renderTasks())
	}
	b.WriteString("\n")

	for _, t := range m.toasts {
		b.WriteString("\n" + styles.Toast(t.alert))
	}

	switch {
	case m.err != nil:
		b.WriteString("\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.notice != "":
		b.WriteString("\n" + styles.help.Render(m.notice))
	}

	b.WriteString("\n\n" + m.help.ShortHelpView(m.helpKeys()))
	return b.String()
}

func (m *Model) helpKeys() []key.Binding {
	if m.showFeed {
		return []key.Binding{m.keys.markRead, m.keys.markAll, m.keys.back, m.keys.quit}
	}
	return []key.Binding{m.keys.reconnect, m.keys.notifications, m.keys.markAll, m.keys.quit}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showFeed && m.feedList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.feedList, cmd = m.feedList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.reconnect):
		m.notice = "reconnecting…"
		return m, func() tea.Msg {
			m.controller.Reconnect(m.ctx)
			return actionDoneMsg("reconnect requested", nil)
		}

	case key.Matches(msg, m.keys.notifications):
		m.showFeed = !m.showFeed
		return m, nil

	case key.Matches(msg, m.keys.back) && m.showFeed:
		m.showFeed = false
		return m, nil

	case key.Matches(msg, m.keys.markAll):
		if m.feed == nil {
			return m, nil
		}
		return m, func() tea.Msg {
			return actionDoneMsg("marked all notifications read", m.feed.MarkAllRead(m.ctx))
		}

	case key.Matches(msg, m.keys.markRead) && m.showFeed:
		item, ok := m.feedList.SelectedItem().(notificationItem)
		if !ok || m.feed == nil || item.notification.Read {
			return m, nil
		}
		id := item.notification.ID
		return m, func() tea.Msg {
			return actionDoneMsg("marked "+id+" read", m.feed.MarkRead(m.ctx, id))
		}
	}

	if m.showFeed {
		var cmd tea.Cmd
		m.feedList, cmd = m.feedList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// refresh copies the store into the model.
func (m *Model) refresh() {
	m.mode = m.store.Mode()
	m.tasks = m.store.Tasks()

	feed := m.store.Feed()
	m.unread = feed.Page.UnreadCount
	m.feedList.SetItems(notificationItems(feed.Page.Items, m.now()))
}

func (m *Model) renderTasks() string {
	if len(m.tasks) == 0 {
		return styles.help.Render("No tasks yet.")
	}

	var b strings.Builder
	for _, t := range m.tasks {
		detail := t.Stage
		if t.Status == models.StatusFailed {
			detail = styles.err.Render(t.Error)
		}
		fmt.Fprintf(&b, "%-*s %-14s %s %3d%%  %s\n",
			titleWidth, truncate(taskLabel(t), titleWidth),
			styles.Status(t.Status),
			m.bar.ViewAs(float64(t.Progress)/100),
			t.Progress,
			detail,
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

// waitForChange blocks for the next store change and coalesces any queued behind it.
func (m *Model) waitForChange() tea.Cmd {
	changes := m.changes
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		for {
			select {
			case _, ok := <-changes:
				if !ok {
					return storeChangedMsg()
				}
			default:
				return storeChangedMsg()
			}
		}
	}
}

func (m *Model) waitForAlert() tea.Cmd {
	if m.alerts == nil {
		return nil
	}
	alerts := m.alerts
	return func() tea.Msg {
		a, ok := <-alerts
		if !ok {
			return nil
		}
		return alertMsg(a)
	}
}

func taskLabel(t models.TaskLiveStatus) string {
	if t.Title != "" {
		return t.Title
	}
	return t.ID
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
