package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/mapscene/animator/internal/queue"
	"github.com/mapscene/animator/internal/retry"
	"github.com/mapscene/animator/pkg/streaming"
)

const (
	// outboxSize caps frames waiting for the writer. Older frames are
	// evicted first since a newer status supersedes them.
	outboxSize = 4096
	writeWait  = 10 * time.Second
	ackTimeout = 10 * time.Second
)

// reconnectPolicy is the backoff between redial attempts.
var reconnectPolicy = retry.Policy{
	MaxAttempts:  10,
	InitialDelay: time.Second,
	MaxDelay:     30 * time.Second,
	Multiplier:   2,
}

// connection owns one live socket at a time. A single writer drains the
// outbox; a single reader resolves ack waiters by message type.
type connection struct {
	mu      sync.Mutex
	conn    *ws.Conn
	closed  bool
	done    chan struct{}
	wake    chan struct{}
	outbox  *queue.Queue[[]byte]
	waiters map[string][]chan struct{}

	wsURL  string
	secret string
	policy retry.Policy

	// hello is replayed first on every new socket so the server can resume.
	hello []byte

	sent atomic.Uint64

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
		outbox:  queue.NewBounded[[]byte](outboxSize),
		waiters: make(map[string][]chan struct{}),
		policy:  reconnectPolicy,
		logger:  logger,
	}
}

func (c *connection) endpoint() (string, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// dial opens the first socket. Later sockets come from reconnect.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.open()
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *connection) open() (*ws.Conn, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	conn, _, err := ws.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (c *connection) attach(conn *ws.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	go c.writeLoop(conn)
	go c.readLoop(conn)
	c.notify()
}

func (c *connection) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *connection) write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

func (c *connection) writeLoop(conn *ws.Conn) {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}
		frames := c.outbox.Drain()
		for i, data := range frames {
			if err := c.write(conn, data); err != nil {
				c.logger.Warn("websocket write failed", "error", err)
				// unsent frames go back for the next socket
				c.outbox.Push(frames[i:]...)
				c.notify()
				go c.reconnect(conn)
				return
			}
			c.sent.Add(1)
		}
	}
}

func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("websocket read failed", "error", err)
				go c.reconnect(conn)
			}
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("ignoring non-ack message", "raw", string(message))
			continue
		}
		c.resolve(ack.For)
	}
}

// resolve releases the oldest waiter for msgType.
func (c *connection) resolve(msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.waiters[msgType]
	if len(pending) == 0 {
		c.logger.Debug("unexpected ack", "for", msgType)
		return
	}
	close(pending[0])
	c.waiters[msgType] = pending[1:]
}

func (c *connection) forget(msgType string, ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.waiters[msgType]
	for i, w := range pending {
		if w == ch {
			c.waiters[msgType] = append(pending[:i:i], pending[i+1:]...)
			return
		}
	}
}

// reconnect replaces failed. Reader and writer may both report the same
// socket; only the first report redials.
func (c *connection) reconnect(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != failed {
		c.mu.Unlock()
		return
	}
	_ = failed.Close()
	c.conn = nil
	c.mu.Unlock()

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		backoff := c.policy.Delay(attempt + 1)
		c.logger.Info("websocket reconnecting", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.open()
		if err != nil {
			c.logger.Warn("websocket redial failed", "attempt", attempt, "error", err)
			continue
		}

		c.mu.Lock()
		closed, hello := c.closed, c.hello
		c.mu.Unlock()
		if closed {
			_ = conn.Close()
			return
		}
		if hello != nil {
			if err := c.write(conn, hello); err != nil {
				c.logger.Warn("websocket hello replay failed", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("websocket reconnected", "attempt", attempt)
		c.attach(conn)
		return
	}

	c.logger.Error("websocket gave up reconnecting", "attempts", c.policy.MaxAttempts)
}

// send queues data for the writer without blocking.
func (c *connection) send(data []byte) {
	c.outbox.Push(data)
	c.notify()
}

// sendAndWait queues data and blocks until the server acks msgType or the
// timeout expires.
func (c *connection) sendAndWait(data []byte, msgType string, timeout time.Duration) error {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters[msgType] = append(c.waiters[msgType], ch)
	c.mu.Unlock()

	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		c.forget(msgType, ch)
		return fmt.Errorf("timeout waiting for ack of %q", msgType)
	case <-c.done:
		return fmt.Errorf("connection closed while waiting for ack of %q", msgType)
	}
}

func (c *connection) setHello(data []byte) {
	c.mu.Lock()
	c.hello = data
	c.mu.Unlock()
}

// dropped returns how many frames were evicted from a full outbox.
func (c *connection) dropped() uint64 {
	return c.outbox.Dropped()
}

// close sends a close frame and stops both loops.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return conn.Close()
}
