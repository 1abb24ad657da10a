package broadcast

import (
	"fmt"
	"sync"
	"time"

	"liveserve/internal/model"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	messageBufferSize = 16
)

type client struct {
	id      string
	conn    Conn
	clock   clockwork.Clock
	sendCh  chan []byte
	doneCh  chan struct{}
	onFail  func(id string, err error)
	wg      sync.WaitGroup
	stopped sync.Once

	mu       sync.Mutex
	open     bool
	lastSeen time.Time
}

func newClient(id string, conn Conn, queueSize int, clock clockwork.Clock, onFail func(string, error)) *client {
	c := &client{
		id:       id,
		conn:     conn,
		clock:    clock,
		sendCh:   make(chan []byte, queueSize),
		doneCh:   make(chan struct{}),
		onFail:   onFail,
		open:     true,
		lastSeen: clock.Now(),
	}

	c.wg.Add(1)
	go c.run()
	return c
}

func (c *client) run() {
	defer c.wg.Done()

	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.fail(err)
				return
			}

		case <-ticker.Chan():
			_ = c.conn.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail(err)
				return
			}

		case <-c.doneCh:
			return
		}
	}
}

// fail runs the prune callback outside the writer goroutine, since pruning
// waits for this goroutine to exit.
func (c *client) fail(err error) {
	c.markClosed()
	go c.onFail(c.id, fmt.Errorf("%w: %w", model.ErrPushSendFailure, err))
}

func (c *client) enqueue(data []byte) error {
	c.mu.Lock()
	open := c.open
	c.mu.Unlock()

	if !open {
		return fmt.Errorf("%w: client closed", model.ErrPushSendFailure)
	}

	select {
	case c.sendCh <- data:
		return nil
	default:
		c.markClosed()
		return fmt.Errorf("%w: send queue full", model.ErrPushSendFailure)
	}
}

func (c *client) stop() {
	c.stopped.Do(func() {
		c.markClosed()
		close(c.doneCh)
		_ = c.conn.Close()
	})
	c.wg.Wait()
}

func (c *client) stopGraceful(reason string) {
	c.stopped.Do(func() {
		c.markClosed()
		close(c.doneCh)

		// no concurrent writes once the writer has exited
		c.wg.Wait()

		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
		_ = c.conn.SetWriteDeadline(c.clock.Now().Add(time.Second))
		_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
		_ = c.conn.Close()
	})
	c.wg.Wait()
}

func (c *client) markClosed() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastSeen = c.clock.Now()
	c.mu.Unlock()
}

func (c *client) snapshot() model.ClientConnection {
	c.mu.Lock()
	defer c.mu.Unlock()

	return model.ClientConnection{
		ID:       c.id,
		Open:     c.open,
		LastSeen: c.lastSeen,
	}
}
