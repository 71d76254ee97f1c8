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

	"github.com/OCAP2/mediatrack/pkg/streaming"
)

const (
	sendQueueSize = 4096
	ackQueueSize  = 16
	maxReconnect  = 10
	maxBackoff    = 30 * time.Second
	writeWait     = 10 * time.Second
	ackTimeout    = 10 * time.Second
)

// connection owns one WebSocket at a time. Data writes go through a single
// goroutine fed by sendCh; acks read by readLoop are routed to ackCh.
type connection struct {
	mu sync.Mutex
	// live is signalled when conn is replaced or the connection closes.
	live   *sync.Cond
	conn   *ws.Conn
	closed bool
	// hello is written first on every reconnect.
	hello []byte

	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{}

	target  string
	backoff time.Duration
	dropped atomic.Uint64

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	c := &connection{
		sendCh:  make(chan []byte, sendQueueSize),
		ackCh:   make(chan streaming.AckMessage, ackQueueSize),
		done:    make(chan struct{}),
		backoff: time.Second,
		logger:  logger,
	}
	c.live = sync.NewCond(&c.mu)
	return c
}

// dial connects to rawURL with secret as query parameter and starts the
// read and write loops.
func (c *connection) dial(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	c.target = u.String()

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.start(conn)
	go c.writeLoop()
	return nil
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	conn, _, err := ws.DefaultDialer.Dial(c.target, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// start publishes conn and starts its read loop.
func (c *connection) start(conn *ws.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.live.Broadcast()
	c.mu.Unlock()
	go c.readLoop(conn)
}

// current blocks until a connection is available. It returns nil once the
// connection is closed.
func (c *connection) current() *ws.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.conn == nil && !c.closed {
		c.live.Wait()
	}
	if c.closed {
		return nil
	}
	return c.conn
}

// writeLoop is the only writer of data messages. A message whose write
// fails is retried on the next connection.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			for {
				conn := c.current()
				if conn == nil {
					return
				}
				err := write(conn, data)
				if err == nil {
					break
				}
				c.logger.Warn("WebSocket write error", "error", err)
				c.reconnect(conn)
			}
		}
	}
}

func write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("WebSocket read error", "error", err)
				go c.reconnect(conn)
			}
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}
		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect replaces broken with a new connection, retrying with
// exponential backoff up to maxReconnect times. Only the first caller for
// a given broken connection proceeds.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()
	_ = broken.Close()

	backoff := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		hello := c.hello
		c.mu.Unlock()
		if hello != nil {
			if err := write(conn, hello); err != nil {
				c.logger.Warn("Failed to replay start_stream after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		c.start(conn)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send queues data for the write loop without blocking; it drops the
// message when the queue is full.
func (c *connection) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		c.dropped.Add(1)
		c.logger.Warn("WebSocket send channel full, dropping message")
		return false
	}
}

// sendAndWait queues data and waits for the ack of ackFor.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	if !c.send(data) {
		return fmt.Errorf("send queue full, %q dropped", ackFor)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
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
	c.live.Broadcast()
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
