// Package watcher turns fsnotify notifications for a directory tree into a
// filtered, debounced sequence of model.WatchEvent values.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"liveserve/internal/logger"
	"liveserve/internal/model"
	"liveserve/internal/pipeline"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type Options struct {
	IgnoreList    []string
	Debounce      time.Duration
	BufferSize    int
	SkipUnchanged bool
	Clock         clockwork.Clock
}

type Watcher struct {
	opts     Options
	fw       *fsnotify.Watcher
	rawCh    chan model.WatchEvent
	eventCh  <-chan model.WatchEvent
	doneCh   chan struct{}
	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

func New(opts Options) (*Watcher, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 100
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create watcher: %w", model.ErrWatchUnavailable, err)
	}

	return &Watcher{
		opts:   opts,
		fw:     fw,
		rawCh:  make(chan model.WatchEvent, opts.BufferSize),
		doneCh: make(chan struct{}),
	}, nil
}

// Watch starts monitoring dir recursively. A Watcher can be started once.
func (w *Watcher) Watch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("watcher already started")
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("%w: failed to resolve path: %w", model.ErrWatchUnavailable, err)
	}

	if info, err := os.Stat(absDir); err != nil {
		return fmt.Errorf("%w: %w", model.ErrWatchUnavailable, err)
	} else if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", model.ErrWatchUnavailable, absDir)
	}

	if err := w.fw.Add(absDir); err != nil {
		return fmt.Errorf("%w: failed to watch %s: %w", model.ErrWatchUnavailable, absDir, err)
	}
	w.addRecursive(absDir, absDir)

	events := pipeline.Filter(w.rawCh, w.doneCh, absDir, w.opts.IgnoreList)
	events = pipeline.Debounce(events, w.doneCh, w.opts.Debounce, w.opts.Clock)
	if w.opts.SkipUnchanged {
		events = pipeline.NewChecksumFilter().Run(events, w.doneCh)
	}
	w.eventCh = events
	w.started = true

	go w.run(absDir)

	logger.Log.Info("watcher started",
		zap.String("dir", absDir))
	return nil
}

// addRecursive watches every directory below dir. Directories that vanish or
// cannot be read while walking are skipped.
func (w *Watcher) addRecursive(root, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Log.Debug("skipping unreadable path",
				zap.String("path", path),
				zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() || path == root {
			return nil
		}

		if pipeline.ShouldIgnore(root, path, w.opts.IgnoreList) {
			return filepath.SkipDir
		}

		if err := w.fw.Add(path); err != nil {
			logger.Log.Warn("failed to watch directory",
				zap.String("path", path),
				zap.Error(err))
			return nil
		}

		logger.Log.Debug("watching directory",
			zap.String("path", path))
		return nil
	})
}

func (w *Watcher) run(root string) {
	defer close(w.rawCh)

	for {
		select {
		case <-w.doneCh:
			logger.Log.Info("watcher stopping")
			return

		case fsEvent, ok := <-w.fw.Events:
			if !ok {
				return
			}

			kind := toEventKind(fsEvent.Op)
			if kind == "" {
				continue
			}

			if fsEvent.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
					if !pipeline.ShouldIgnore(root, fsEvent.Name, w.opts.IgnoreList) {
						if err := w.fw.Add(fsEvent.Name); err != nil {
							logger.Log.Warn("failed to watch new directory",
								zap.String("path", fsEvent.Name),
								zap.Error(err))
						} else {
							w.addRecursive(root, fsEvent.Name)
						}
					}
				}
			}

			event := model.WatchEvent{
				Path:      fsEvent.Name,
				Kind:      kind,
				Timestamp: w.opts.Clock.Now(),
			}

			select {
			case w.rawCh <- event:
			case <-w.doneCh:
				return
			default:
				logger.Log.Warn("event channel is full, dropping event",
					zap.String("path", fsEvent.Name))
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}

			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Log.Warn("watcher queue overflowed, events were lost")
				continue
			}

			logger.Log.Warn("watcher error",
				zap.Error(err))
		}
	}
}

// Events yields debounced events until Stop is called. The sequence has a
// single consumer; it cannot be restarted once it ends.
func (w *Watcher) Events() iter.Seq[model.WatchEvent] {
	w.mu.Lock()
	eventCh := w.eventCh
	w.mu.Unlock()

	return func(yield func(model.WatchEvent) bool) {
		if eventCh == nil {
			return
		}

		for event := range eventCh {
			if !yield(event) {
				return
			}
		}
	}
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.doneCh)
		_ = w.fw.Close()
	})
}

func toEventKind(op fsnotify.Op) model.EventKind {
	switch {
	case op.Has(fsnotify.Create):
		return model.EventCreated
	case op.Has(fsnotify.Write):
		return model.EventModified
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return model.EventRemoved
	default:
		return ""
	}
}
