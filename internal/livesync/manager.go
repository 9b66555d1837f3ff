package livesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/recap/internal/credential"
	"github.com/desertthunder/recap/internal/models"
	"github.com/desertthunder/recap/internal/shared"
	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"
)

// State is the lifecycle state of the current push connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAuthenticating
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	DefaultAuthTimeout    = 5 * time.Second
	DefaultBaseDelay      = 3 * time.Second
	DefaultMaxDelay       = 60 * time.Second
	DefaultMaxAttempts    = 10
	DefaultPollInterval   = defaultPollInterval
	closeReasonAuthExpiry = "authentication timeout"
)

// ManagerOpts configures a [Manager].
type ManagerOpts struct {
	BaseURL     string // REST base URL the push endpoint is derived from
	PushPath    string
	AppURL      string
	Credentials credential.Source
	Dialer      Dialer
	Client      TaskLister
	Store       *Store
	Alerter     Alerter
	Clock       clockwork.Clock

	AuthTimeout  time.Duration
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	PollInterval time.Duration

	Metrics *Metrics
	Logger  *log.Logger
}

// OptsFromConfig fills the endpoint and timing fields of [ManagerOpts] from cfg.
func OptsFromConfig(cfg *shared.Config) ManagerOpts {
	return ManagerOpts{
		BaseURL:      cfg.API.BaseURL,
		PushPath:     cfg.Live.PushPath,
		AppURL:       cfg.API.AppURL,
		AuthTimeout:  cfg.Live.AuthTimeout,
		BaseDelay:    cfg.Live.ReconnectBaseDelay,
		MaxDelay:     cfg.Live.ReconnectMaxDelay,
		MaxAttempts:  cfg.Live.MaxReconnectAttempts,
		PollInterval: cfg.Live.PollInterval,
	}
}

type authenticateFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// closeEvent describes why a connection ended.
type closeEvent struct {
	code   int    // close code sent to the peer
	reason string // close reason sent to the peer
	label  string // disconnect metric label
	cause  error
}

// Manager maintains at most one authenticated push connection per session.
//
// Every connection, timer callback and read loop is tagged with the epoch it was created
// under. Any transition that replaces or ends a connection bumps the epoch, so callbacks
// from an older epoch are ignored. Lock order is Manager, then Poller, then Store.
type Manager struct {
	endpoint    string
	creds       credential.Source
	dialer      Dialer
	store       *Store
	reconciler  *Reconciler
	poller      *Poller
	clock       clockwork.Clock
	authTimeout time.Duration
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	metrics     *Metrics
	logger      *log.Logger

	mu             sync.Mutex
	active         bool
	epoch          uint64
	sessionCtx     context.Context
	cancel         context.CancelFunc
	state          State
	conn           Conn
	connID         string
	attempts       int
	authTimer      clockwork.Timer
	reconnectTimer clockwork.Timer
}

// NewManager creates an idle [Manager]. The returned manager does nothing until [Manager.Connect].
func NewManager(opts ManagerOpts) (*Manager, error) {
	endpoint, err := PushEndpoint(opts.BaseURL, opts.PushPath)
	if err != nil {
		return nil, err
	}
	if opts.Credentials == nil {
		return nil, fmt.Errorf("%w: credential source is required", shared.ErrMissingArgument)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: store is required", shared.ErrMissingArgument)
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("%w: task client is required", shared.ErrMissingArgument)
	}

	if opts.Dialer == nil {
		opts.Dialer = NewWebsocketDialer(WebsocketDialerOpts{})
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = DefaultAuthTimeout
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	m := &Manager{
		endpoint:    endpoint,
		creds:       opts.Credentials,
		dialer:      opts.Dialer,
		store:       opts.Store,
		clock:       opts.Clock,
		authTimeout: opts.AuthTimeout,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
		maxAttempts: opts.MaxAttempts,
		metrics:     opts.Metrics,
		logger:      shared.WithLogger(opts.Logger, "component", "livesync"),
		state:       StateIdle,
	}
	m.reconciler = NewReconciler(ReconcilerOpts{
		Store:   opts.Store,
		Alerter: opts.Alerter,
		AppURL:  opts.AppURL,
		Metrics: opts.Metrics,
		Logger:  m.logger,
	})
	m.poller = NewPoller(PollerOpts{
		Client:    opts.Client,
		Store:     opts.Store,
		Clock:     opts.Clock,
		Interval:  opts.PollInterval,
		OnSuccess: m.handlePollSuccess,
		Metrics:   opts.Metrics,
		Logger:    shared.WithLogger(opts.Logger, "component", "poller"),
	})
	return m, nil
}

// Connect starts a live session. ctx bounds the whole session, not just the first dial.
//
// Without a session credential Connect does nothing: the user is simply not signed in.
// Calling Connect on an active session does not open a second connection.
func (m *Manager) Connect(ctx context.Context) {
	tok, err := m.creds.SessionCredential(ctx)
	if err != nil {
		m.logger.Warn("session credential unavailable, not connecting", "err", err)
		return
	}
	if tok == nil {
		m.logger.Debug("no session credential, not connecting")
		return
	}

	m.mu.Lock()
	if !m.active {
		m.active = true
		m.sessionCtx, m.cancel = context.WithCancel(ctx)
	}
	m.mu.Unlock()

	m.dial(false, tok)
}

// Reconnect replaces the current connection with a fresh one and resets the attempt counter.
// On an inactive manager it behaves like [Manager.Connect].
func (m *Manager) Reconnect(ctx context.Context) {
	m.mu.Lock()
	active := m.active
	if active {
		m.attempts = 0
	}
	m.mu.Unlock()

	if !active {
		m.Connect(ctx)
		return
	}
	m.dial(true, nil)
}

// Disconnect ends the session: timers are stopped, the connection is closed, polling stops
// and the mode resets to disconnected. It is safe to call any number of times.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn, wasActive := m.teardownLocked()
	m.mu.Unlock()
	m.finishTeardown(conn, wasActive)
}

// disconnectIfCurrent ends the session unless a newer dial or close has moved past ep.
func (m *Manager) disconnectIfCurrent(ep uint64) {
	m.mu.Lock()
	if ep != m.epoch {
		m.mu.Unlock()
		return
	}
	conn, wasActive := m.teardownLocked()
	m.mu.Unlock()
	m.finishTeardown(conn, wasActive)
}

func (m *Manager) teardownLocked() (Conn, bool) {
	wasActive := m.active
	m.active = false
	m.epoch++
	m.stopTimersLocked()
	conn := m.conn
	m.conn = nil
	m.state = StateIdle
	m.attempts = 0
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.poller.Stop()
	m.setModeLocked(models.ModeDisconnected)
	return conn, wasActive
}

func (m *Manager) finishTeardown(conn Conn, wasActive bool) {
	if conn != nil {
		_ = conn.Close(CloseNormal, "client disconnect")
	}
	if wasActive {
		m.logger.Info("live session ended")
	}
}

// State returns the lifecycle state of the current connection.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of reconnects scheduled since the last successful authentication.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Active reports whether a session is running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Endpoint returns the push address.
func (m *Manager) Endpoint() string { return m.endpoint }

// Store returns the store the manager writes to.
func (m *Manager) Store() *Store { return m.store }

// Poller returns the fallback poller.
func (m *Manager) Poller() *Poller { return m.poller }

// Reconciler returns the reconciler frames are applied with.
func (m *Manager) Reconciler() *Reconciler { return m.reconciler }

// dial opens a new connection. Unless force is set it does nothing while a connection
// exists or another dial is in progress. tok may be nil to fetch a fresh credential.
func (m *Manager) dial(force bool, tok *oauth2.Token) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	if !force && (m.conn != nil || m.state == StateConnecting) {
		m.mu.Unlock()
		return
	}

	m.stopTimersLocked()
	old := m.conn
	m.conn = nil
	m.epoch++
	ep := m.epoch
	ctx := m.sessionCtx
	m.state = StateConnecting
	m.mu.Unlock()

	if old != nil {
		_ = old.Close(CloseNormal, "reconnecting")
	}

	if tok == nil {
		var err error
		tok, err = m.creds.SessionCredential(ctx)
		if err != nil {
			m.handleClose(ep, nil, closeEvent{label: "credential", cause: err})
			return
		}
		if tok == nil {
			m.logger.Info("session credential removed, stopping live updates")
			m.disconnectIfCurrent(ep)
			return
		}
	}

	m.metrics.ConnectAttempt()
	conn, err := m.dialer.Dial(ctx, m.endpoint)
	if err != nil {
		m.handleClose(ep, nil, closeEvent{label: "dial_error", cause: err})
		return
	}

	m.mu.Lock()
	if ep != m.epoch {
		m.mu.Unlock()
		_ = conn.Close(CloseNormal, "superseded")
		return
	}
	m.conn = conn
	m.connID = shared.GenerateID()
	m.state = StateAuthenticating
	m.authTimer = m.clock.AfterFunc(m.authTimeout, func() { go m.authExpired(ep) })
	connID := m.connID
	m.mu.Unlock()

	m.logger.Debug("push connection open, authenticating", "conn", connID, "endpoint", m.endpoint)

	if err := conn.WriteJSON(authenticateFrame{Type: "authenticate", Token: tok.AccessToken}); err != nil {
		m.handleClose(ep, conn, closeEvent{
			code:  CloseNormal,
			label: "write_error",
			cause: fmt.Errorf("sending authenticate frame: %w", err),
		})
		return
	}

	go m.readLoop(ep, conn)
}

func (m *Manager) readLoop(ep uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			code, reason := closeDetails(err)
			m.handleClose(ep, conn, closeEvent{code: code, reason: reason, label: "read_error", cause: err})
			return
		}
		if !m.handleFrame(ep, data) {
			return
		}
	}
}

// handleFrame applies one frame if it belongs to the current connection.
func (m *Manager) handleFrame(ep uint64, data []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ep != m.epoch {
		return false
	}
	m.reconciler.Handle(data, m.authenticatedLocked)
	return true
}

func (m *Manager) authenticatedLocked() {
	if m.state != StateAuthenticating {
		return
	}
	if m.authTimer != nil {
		m.authTimer.Stop()
		m.authTimer = nil
	}
	m.state = StateOpen
	m.attempts = 0
	m.setModeLocked(models.ModePushConnected)
	m.metrics.Authenticated()
	m.poller.Stop()
	m.logger.Info("push channel connected", "conn", m.connID)
}

func (m *Manager) authExpired(ep uint64) {
	m.mu.Lock()
	if ep != m.epoch || m.state != StateAuthenticating {
		m.mu.Unlock()
		return
	}
	conn := m.conn
	m.mu.Unlock()

	m.handleClose(ep, conn, closeEvent{
		code:   CloseAuthTimeout,
		reason: closeReasonAuthExpiry,
		label:  "auth_timeout",
		cause:  shared.ErrAuthTimeout,
	})
}

// handleClose ends the connection of epoch ep and schedules the next attempt.
func (m *Manager) handleClose(ep uint64, conn Conn, ev closeEvent) {
	m.mu.Lock()
	if ep != m.epoch {
		m.mu.Unlock()
		return
	}
	m.epoch++
	if m.authTimer != nil {
		m.authTimer.Stop()
		m.authTimer = nil
	}
	m.conn = nil
	m.state = StateClosed
	m.metrics.Disconnect(ev.label)
	if m.active {
		m.scheduleReconnectLocked()
	}
	attempts := m.attempts
	mode := m.store.Mode()
	m.mu.Unlock()

	if conn != nil {
		code := ev.code
		if code == 0 {
			code = CloseNormal
		}
		_ = conn.Close(code, ev.reason)
	}
	m.logger.Warn("push connection closed", "reason", ev.label, "err", ev.cause, "attempts", attempts, "mode", mode)
}

func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.maxAttempts {
		m.setModeLocked(models.ModePollingFallback)
		m.poller.Start(m.sessionCtx)
		return
	}

	delay := Backoff(m.baseDelay, m.maxDelay, m.attempts)
	m.attempts++
	ep := m.epoch
	m.reconnectTimer = m.clock.AfterFunc(delay, func() { go m.reconnectDue(ep) })
	// A manual reconnect out of fallback leaves polling running until push authenticates.
	if m.poller.Running() {
		m.setModeLocked(models.ModePollingFallback)
	} else {
		m.setModeLocked(models.ModePushReconnecting)
	}
	m.logger.Debug("reconnect scheduled", "delay", delay, "attempt", m.attempts)
}

func (m *Manager) reconnectDue(ep uint64) {
	m.mu.Lock()
	if ep != m.epoch || !m.active {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil
	m.mu.Unlock()

	m.dial(false, nil)
}

// handlePollSuccess tries push again when nothing else is already trying.
func (m *Manager) handlePollSuccess() {
	m.mu.Lock()
	idle := m.active && m.conn == nil && m.state != StateConnecting && m.reconnectTimer == nil
	m.mu.Unlock()

	if idle {
		go m.dial(false, nil)
	}
}

func (m *Manager) stopTimersLocked() {
	if m.authTimer != nil {
		m.authTimer.Stop()
		m.authTimer = nil
	}
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) setModeLocked(mode models.ConnectivityMode) {
	m.store.SetConnectivityMode(mode)
	m.metrics.Mode(mode)
}
