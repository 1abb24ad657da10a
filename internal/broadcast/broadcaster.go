package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"liveserve/internal/logger"
	"liveserve/internal/metrics"
	"liveserve/internal/model"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Conn is the transport a client writer pushes to. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Options struct {
	Root        string
	CSSInject   bool
	QueueSize   int
	Clock       clockwork.Clock
	NewClientID func() string
}

type Broadcaster struct {
	mu      sync.Mutex
	clients map[string]*client
	closed  bool
	opts    Options
}

func New(opts Options) *Broadcaster {
	if opts.QueueSize <= 0 {
		opts.QueueSize = messageBufferSize
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.NewClientID == nil {
		opts.NewClientID = func() string { return uuid.NewString() }
	}

	return &Broadcaster{
		clients: make(map[string]*client),
		opts:    opts,
	}
}

// Register adds conn to the broadcast set and starts its writer. It never
// blocks on the transport. After Close, the connection is closed at once and
// returned as not open.
func (b *Broadcaster) Register(conn Conn) model.ClientConnection {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.opts.NewClientID()
	for b.clients[id] != nil {
		id = uuid.NewString()
	}

	now := b.opts.Clock.Now()
	if b.closed {
		_ = conn.Close()
		return model.ClientConnection{ID: id, Open: false, LastSeen: now}
	}

	c := newClient(id, conn, b.opts.QueueSize, b.opts.Clock, b.prune)
	b.clients[id] = c

	metrics.ConnectedClients.Set(float64(len(b.clients)))
	metrics.ClientConnectionsTotal.Inc()

	logger.Log.Debug("client registered",
		zap.String("id", id),
		zap.Int("clients", len(b.clients)))

	return c.snapshot()
}

// Unregister removes the client and closes its transport. Unknown or already
// removed IDs are ignored.
func (b *Broadcaster) Unregister(id string) {
	b.mu.Lock()
	c, exists := b.clients[id]
	if exists {
		delete(b.clients, id)
		metrics.ConnectedClients.Set(float64(len(b.clients)))
	}
	b.mu.Unlock()

	if !exists {
		return
	}

	c.stop()

	logger.Log.Debug("client unregistered",
		zap.String("id", id))
}

// prune is called by a writer whose transport failed.
func (b *Broadcaster) prune(id string, err error) {
	logger.Log.Debug("pruning client",
		zap.String("id", id),
		zap.Error(err))
	metrics.PushFailuresTotal.Inc()
	b.Unregister(id)
}

// Touch records activity from the client, such as a pong or an inbound frame.
func (b *Broadcaster) Touch(id string) {
	b.mu.Lock()
	c, exists := b.clients[id]
	b.mu.Unlock()

	if exists {
		c.touch()
	}
}

// Notify broadcasts the message derived from one batch of events. It returns
// the message and how many clients accepted it.
func (b *Broadcaster) Notify(events ...model.WatchEvent) (model.ReloadMessage, int) {
	msg := model.NewReloadMessage(b.opts.Root, events, b.opts.CSSInject)
	return msg, b.Broadcast(msg)
}

// Broadcast enqueues msg for every client registered at the time of the call.
func (b *Broadcaster) Broadcast(msg model.ReloadMessage) int {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Error("failed to marshal reload message", zap.Error(err))
		return 0
	}

	b.mu.Lock()
	targets := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		targets = append(targets, c)
	}
	b.mu.Unlock()

	delivered := 0
	for _, c := range targets {
		if err := c.enqueue(data); err != nil {
			logger.Log.Warn("dropping client",
				zap.String("id", c.id),
				zap.Error(err))
			metrics.PushFailuresTotal.Inc()
			b.Unregister(c.id)
			continue
		}
		delivered++
	}

	metrics.MessagesPublishedTotal.WithLabelValues(string(msg.Kind)).Inc()
	return delivered
}

func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broadcaster) Clients() []model.ClientConnection {
	b.mu.Lock()
	defer b.mu.Unlock()

	snaps := make([]model.ClientConnection, 0, len(b.clients))
	for _, c := range b.clients {
		snaps = append(snaps, c.snapshot())
	}

	return snaps
}

// Close sends a close frame to every client, closes the transports and
// rejects later registrations.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	clients := b.clients
	b.clients = make(map[string]*client)
	b.closed = true
	b.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.stopGraceful("server shutting down")
		}()
	}
	wg.Wait()

	metrics.ConnectedClients.Set(0)
	logger.Log.Info("broadcaster closed",
		zap.Int("clients", len(clients)))
}
