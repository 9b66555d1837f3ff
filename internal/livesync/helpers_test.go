package livesync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/recap/internal/models"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var errDialRefused = errors.New("connection refused")

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// fakeConn is an in-memory [Conn]. Frames pushed with push are returned by ReadMessage.
type fakeConn struct {
	inbox chan []byte
	done  chan struct{}
	once  sync.Once

	mu          sync.Mutex
	writes      [][]byte
	closed      bool
	remote      bool
	closeCode   int
	closeReason string
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan []byte, 32), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbox:
		return data, nil
	case <-c.done:
		return nil, &websocket.CloseError{Code: websocket.CloseGoingAway, Text: "gone"}
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	c.writes = append(c.writes, data)
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.closeCode = code
		c.closeReason = reason
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

// drop simulates the server closing the connection.
func (c *fakeConn) drop() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.remote = true
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *fakeConn) push(frame string) {
	c.inbox <- []byte(frame)
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeConn) write(i int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.writes[i])
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) closedWith() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}

type dialResult struct {
	conn *fakeConn
	err  error
}

// fakeDialer hands out queued results, then fresh connections once the queue is empty.
type fakeDialer struct {
	mu        sync.Mutex
	queue     []dialResult
	conns     []*fakeConn
	calls     int
	endpoints []string
}

func (d *fakeDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	d.endpoints = append(d.endpoints, endpoint)

	var r dialResult
	if len(d.queue) > 0 {
		r, d.queue = d.queue[0], d.queue[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.conn == nil {
		r.conn = newFakeConn()
	}
	d.conns = append(d.conns, r.conn)
	return r.conn, nil
}

func (d *fakeDialer) enqueue(results ...dialResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, results...)
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recordingAlerter) Alert(a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *recordingAlerter) all() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}

// credentialFunc adapts a function to credential.Source.
type credentialFunc func(ctx context.Context) (*oauth2.Token, error)

func (f credentialFunc) SessionCredential(ctx context.Context) (*oauth2.Token, error) {
	return f(ctx)
}

func staticToken(token string) credentialFunc {
	return func(context.Context) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: token}, nil
	}
}

func waitForMode(t *testing.T, store *Store, want models.ConnectivityMode) {
	t.Helper()
	require.Eventually(t, func() bool { return store.Mode() == want }, waitFor, tick,
		"mode never became %s (last %s)", want, store.Mode())
}

func newTestClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
}
