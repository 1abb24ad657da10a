package pipeline

import (
	"sort"
	"time"

	"liveserve/internal/model"

	"github.com/jonboulle/clockwork"
)

type pendingEvent struct {
	event model.WatchEvent
	due   time.Time
}

// Debounce holds each event for delay and collapses repeats for the same
// path into one carrying the latest kind. Every repeat restarts the path's
// window. Pending events are flushed when inCh closes; closing done drops
// them instead.
func Debounce(inCh <-chan model.WatchEvent, done <-chan struct{}, delay time.Duration, clock clockwork.Clock) <-chan model.WatchEvent {
	outCh := make(chan model.WatchEvent, cap(inCh))

	go func() {
		defer close(outCh)

		pending := make(map[string]pendingEvent)
		var timer clockwork.Timer

		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		rearm := func() {
			if timer != nil {
				timer.Stop()
				timer = nil
			}
			if len(pending) == 0 {
				return
			}

			next := time.Time{}
			for _, p := range pending {
				if next.IsZero() || p.due.Before(next) {
					next = p.due
				}
			}
			timer = clock.NewTimer(max(next.Sub(clock.Now()), 0))
		}

		for {
			var timerCh <-chan time.Time
			if timer != nil {
				timerCh = timer.Chan()
			}

			select {
			case event, ok := <-inCh:
				if !ok {
					for _, ev := range drain(pending, time.Time{}) {
						if !send(outCh, done, ev) {
							return
						}
					}
					return
				}

				pending[event.Path] = pendingEvent{
					event: event,
					due:   clock.Now().Add(delay),
				}
				rearm()

			case <-timerCh:
				timer = nil
				for _, ev := range drain(pending, clock.Now()) {
					if !send(outCh, done, ev) {
						return
					}
				}
				rearm()

			case <-done:
				return
			}
		}
	}()

	return outCh
}

// drain removes and returns, oldest first, every pending event due at or
// before now. A zero now drains everything.
func drain(pending map[string]pendingEvent, now time.Time) []model.WatchEvent {
	var ready []pendingEvent
	for path, p := range pending {
		if now.IsZero() || !p.due.After(now) {
			ready = append(ready, p)
			delete(pending, path)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		return ready[i].due.Before(ready[j].due)
	})

	events := make([]model.WatchEvent, len(ready))
	for i, p := range ready {
		events[i] = p.event
	}

	return events
}
