// Package daemon wires the resolver, responder, watcher, broadcaster and
// gateway together and owns their startup and shutdown order.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"liveserve/internal/broadcast"
	"liveserve/internal/config"
	"liveserve/internal/logger"
	"liveserve/internal/metrics"
	"liveserve/internal/model"
	"liveserve/internal/repository"
	"liveserve/internal/resolver"
	"liveserve/internal/server"
	"liveserve/internal/static"
	"liveserve/internal/watcher"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type Options struct {
	Config  *config.Config
	History *repository.HistoryRepository
	Clock   clockwork.Clock
}

type Daemon struct {
	cfg         *config.Config
	clock       clockwork.Clock
	history     *repository.HistoryRepository
	resolver    *resolver.Resolver
	broadcaster *broadcast.Broadcaster
	server      *server.Server
	watcher     *watcher.Watcher
	newWatcher  func(watcher.Options) (*watcher.Watcher, error)
	state       *State

	cancel   context.CancelFunc
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New builds a daemon from a validated config. Nothing is bound or watched
// until Start.
func New(opts Options) (*Daemon, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	cfg := opts.Config

	res, err := resolver.New(cfg.Root, cfg.File)
	if err != nil {
		return nil, err
	}

	snippet := ""
	if cfg.Inject {
		snippet = static.ClientSnippet(server.SocketPath)
	}

	d := &Daemon{
		cfg:      cfg,
		clock:    opts.Clock,
		history:  opts.History,
		resolver: res,
		broadcaster: broadcast.New(broadcast.Options{
			Root:      res.Root(),
			CSSInject: cfg.CSSInject,
			Clock:     opts.Clock,
		}),
		newWatcher: watcher.New,
		state:      NewState(opts.Clock.Now()),
		doneCh:     make(chan struct{}),
	}

	d.server = server.New(server.Options{
		Config:      cfg,
		Resolver:    res,
		Responder:   static.New(cfg.FallbackStatus, snippet),
		Broadcaster: d.broadcaster,
		History:     opts.History,
		Status:      d.Snapshot,
	})

	return d, nil
}

// Start binds the gateway and begins watching root. A failure to bind is
// fatal; a failure to watch leaves the daemon serving without live reload.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.server.Start(); err != nil {
		return err
	}

	ctx, d.cancel = context.WithCancel(ctx)

	w, err := d.startWatcher()
	if err != nil {
		logger.Log.Warn("file watching unavailable, live reload disabled",
			zap.Error(err))
		metrics.WatcherUp.Set(0)
		close(d.doneCh)
		return nil
	}

	d.watcher = w
	d.state.SetWatching(true)
	metrics.WatcherUp.Set(1)

	changeCh := make(chan model.WatchEvent, d.cfg.BufferSize)
	go forward(ctx, w.Events(), changeCh)
	go d.coordinate(ctx, changeCh)
	return nil
}

func (d *Daemon) startWatcher() (*watcher.Watcher, error) {
	w, err := d.newWatcher(watcher.Options{
		IgnoreList:    d.cfg.IgnoreList,
		Debounce:      d.cfg.Wait,
		BufferSize:    d.cfg.BufferSize,
		SkipUnchanged: true,
		Clock:         d.clock,
	})
	if err != nil {
		return nil, err
	}

	if err := w.Watch(d.resolver.Root()); err != nil {
		w.Stop()
		return nil, err
	}

	return w, nil
}

// forward copies the watcher's event sequence onto changeCh, the queue the
// coordinator batches from.
func forward(ctx context.Context, events iter.Seq[model.WatchEvent], changeCh chan<- model.WatchEvent) {
	defer close(changeCh)

	for event := range events {
		select {
		case changeCh <- event:
		case <-ctx.Done():
			return
		}
	}
}

// coordinate is the single consumer of the watcher's events. Events that are
// already queued when one arrives are folded into the same batch, so a burst
// produces one reload message.
func (d *Daemon) coordinate(ctx context.Context, changeCh <-chan model.WatchEvent) {
	defer close(d.doneCh)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-changeCh:
			if !ok {
				d.watchLost(ctx)
				return
			}

			batch := []model.WatchEvent{event}
		drain:
			for {
				select {
				case next, ok := <-changeCh:
					if !ok {
						break drain
					}
					batch = append(batch, next)
				default:
					break drain
				}
			}

			d.handleBatch(batch)
		}
	}
}

// watchLost marks the daemon degraded when the event stream ends on its own,
// for example after the root directory is removed.
func (d *Daemon) watchLost(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	logger.Log.Warn("file watching stopped, live reload disabled",
		zap.String("root", d.resolver.Root()))
	d.state.SetWatching(false)
	metrics.WatcherUp.Set(0)
}

func (d *Daemon) handleBatch(batch []model.WatchEvent) {
	for _, event := range batch {
		metrics.WatchEventsTotal.WithLabelValues(string(event.Kind)).Inc()
		logger.Log.Debug("change detected",
			zap.String("path", event.Path),
			zap.String("kind", string(event.Kind)))
	}

	msg, delivered := d.broadcaster.Notify(batch...)

	now := d.clock.Now()
	d.state.RecordReload(now)

	logger.Log.Info("change broadcast",
		zap.String("kind", string(msg.Kind)),
		zap.String("path", msg.Path),
		zap.Int("events", len(batch)),
		zap.Int("clients", delivered))

	if d.history == nil {
		return
	}

	if err := d.history.Save(msg, len(batch), delivered, now); err != nil {
		logger.Log.Warn("failed to record reload",
			zap.Error(err))
	}
}

func (d *Daemon) Snapshot() model.StatusSnapshot {
	return d.state.Snapshot(d.resolver.Root(), d.server.Addr(), d.broadcaster.Count())
}

func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// StopCh fires when a stop is requested through the control API.
func (d *Daemon) StopCh() <-chan struct{} {
	return d.server.StopCh()
}

// Stop shuts down the watcher, then every client, then the gateway. It is
// safe to call more than once.
func (d *Daemon) Stop(ctx context.Context) error {
	var err error

	d.stopOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
		if d.watcher != nil {
			d.watcher.Stop()
			d.state.SetWatching(false)
			metrics.WatcherUp.Set(0)
		}

		d.broadcaster.Close()

		if stopErr := d.server.Stop(ctx); stopErr != nil && !errors.Is(stopErr, context.Canceled) {
			err = fmt.Errorf("failed to stop http server: %w", stopErr)
		}

		if d.cancel != nil {
			select {
			case <-d.doneCh:
			case <-ctx.Done():
			}
		}

		logger.Log.Info("daemon stopped")
	})

	return err
}
