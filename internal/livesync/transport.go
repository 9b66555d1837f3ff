package livesync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/recap/internal/shared"
	"github.com/gorilla/websocket"
)

// Close codes sent by this client.
const (
	CloseNormal      = websocket.CloseNormalClosure
	CloseAuthTimeout = 4001
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReadLimit        = 1 << 20
	writeWait               = 5 * time.Second
)

// Conn is one push transport connection.
//
// ReadMessage is called from a single goroutine; WriteJSON and Close may be called
// concurrently with it.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close(code int, reason string) error
}

// Dialer opens push connections.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// WebsocketDialer dials push connections with gorilla/websocket.
type WebsocketDialer struct {
	dialer    *websocket.Dialer
	userAgent string
	readLimit int64
}

// WebsocketDialerOpts configures a [WebsocketDialer]. Zero values pick defaults.
type WebsocketDialerOpts struct {
	HandshakeTimeout time.Duration
	UserAgent        string
	ReadLimit        int64
}

// NewWebsocketDialer creates a [WebsocketDialer].
func NewWebsocketDialer(opts WebsocketDialerOpts) *WebsocketDialer {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "recap"
	}

	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		userAgent: opts.UserAgent,
		readLimit: opts.ReadLimit,
	}
}

// Dial implements [Dialer].
func (d *WebsocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	header := http.Header{}
	header.Set("User-Agent", d.userAgent)
	header.Set("X-Request-ID", shared.GenerateID())

	conn, resp, err := d.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: push handshake returned %d", shared.ErrServiceUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	conn.SetReadLimit(d.readLimit)

	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// Close sends a close frame with code and reason, then closes the socket.
func (c *wsConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.writeMu.Unlock()

		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// closeDetails extracts the peer's close code and reason from a read error.
func closeDetails(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return websocket.CloseAbnormalClosure, ""
}
