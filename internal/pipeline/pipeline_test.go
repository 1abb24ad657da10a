package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"liveserve/internal/model"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch <-chan model.WatchEvent) []model.WatchEvent {
	var events []model.WatchEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestDebounce_CollapsesSamePath(t *testing.T) {
	inCh := make(chan model.WatchEvent, 10)
	outCh := Debounce(inCh, nil, time.Hour, clockwork.NewFakeClock())

	inCh <- model.WatchEvent{Path: "/site/a.html", Kind: model.EventCreated}
	inCh <- model.WatchEvent{Path: "/site/a.html", Kind: model.EventModified}
	inCh <- model.WatchEvent{Path: "/site/b.css", Kind: model.EventModified}
	inCh <- model.WatchEvent{Path: "/site/a.html", Kind: model.EventRemoved}
	close(inCh)

	events := collect(outCh)
	require.Len(t, events, 2)

	byPath := map[string]model.EventKind{}
	for _, ev := range events {
		byPath[ev.Path] = ev.Kind
	}
	assert.Equal(t, model.EventRemoved, byPath["/site/a.html"])
	assert.Equal(t, model.EventModified, byPath["/site/b.css"])
}

func TestDebounce_EmitsAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inCh := make(chan model.WatchEvent, 1)
	outCh := Debounce(inCh, nil, 100*time.Millisecond, clock)

	inCh <- model.WatchEvent{Path: "/site/a.html", Kind: model.EventModified}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	select {
	case ev := <-outCh:
		t.Fatalf("event emitted before the window closed: %+v", ev)
	default:
	}

	clock.Advance(100 * time.Millisecond)

	select {
	case ev := <-outCh:
		assert.Equal(t, "/site/a.html", ev.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for debounced event")
	}

	close(inCh)
	assert.Empty(t, collect(outCh))
}

func TestDebounce_RealClockBurst(t *testing.T) {
	inCh := make(chan model.WatchEvent, 10)
	outCh := Debounce(inCh, nil, 50*time.Millisecond, clockwork.NewRealClock())
	defer close(inCh)

	for range 5 {
		inCh <- model.WatchEvent{Path: "/site/app.js", Kind: model.EventModified}
	}

	select {
	case ev := <-outCh:
		assert.Equal(t, "/site/app.js", ev.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced event")
	}

	select {
	case ev := <-outCh:
		t.Fatalf("burst produced a second event: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func collectWithin(t *testing.T, ch <-chan model.WatchEvent, timeout time.Duration) []model.WatchEvent {
	t.Helper()

	resultCh := make(chan []model.WatchEvent, 1)
	go func() {
		resultCh <- collect(ch)
	}()

	select {
	case events := <-resultCh:
		return events
	case <-time.After(timeout):
		t.Fatal("stage did not close its output")
		return nil
	}
}

func TestDebounce_DoneReleasesBlockedFlush(t *testing.T) {
	inCh := make(chan model.WatchEvent, 1)
	done := make(chan struct{})
	outCh := Debounce(inCh, done, time.Hour, clockwork.NewFakeClock())

	for _, p := range []string{"/site/a.html", "/site/b.html", "/site/c.html"} {
		inCh <- model.WatchEvent{Path: p, Kind: model.EventModified}
	}
	close(inCh)

	// nobody reads outCh; the flush cannot fit three events into one slot
	close(done)

	events := collectWithin(t, outCh, 2*time.Second)
	assert.LessOrEqual(t, len(events), 1)
}

func TestChecksumFilter_DoneReleasesBlockedSend(t *testing.T) {
	dir := t.TempDir()
	inCh := make(chan model.WatchEvent, 1)
	done := make(chan struct{})
	outCh := NewChecksumFilter().Run(inCh, done)

	for _, name := range []string{"a.css", "b.css", "c.css"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(name), 0644))
		inCh <- model.WatchEvent{Path: path, Kind: model.EventModified}
	}

	close(done)
	close(inCh)

	events := collectWithin(t, outCh, 2*time.Second)
	assert.LessOrEqual(t, len(events), 2)
}

func TestDrain(t *testing.T) {
	now := time.Now()
	pending := map[string]pendingEvent{
		"late":  {event: model.WatchEvent{Path: "late"}, due: now.Add(time.Second)},
		"b":     {event: model.WatchEvent{Path: "b"}, due: now.Add(-time.Millisecond)},
		"a":     {event: model.WatchEvent{Path: "a"}, due: now.Add(-time.Second)},
		"exact": {event: model.WatchEvent{Path: "exact"}, due: now},
	}

	ready := drain(pending, now)
	require.Len(t, ready, 3)
	assert.Equal(t, "a", ready[0].Path)
	assert.Equal(t, "b", ready[1].Path)
	assert.Equal(t, "exact", ready[2].Path)
	assert.Len(t, pending, 1)

	assert.Len(t, drain(pending, time.Time{}), 1)
	assert.Empty(t, pending)
}

func TestShouldIgnore(t *testing.T) {
	root := filepath.FromSlash("/site")
	ignore := []string{".git", "node_modules", "*.swp", "*~"}

	tests := map[string]bool{
		"/site/index.html":              false,
		"/site/.git/HEAD":               true,
		"/site/node_modules/x/index.js": true,
		"/site/css/.site.css.swp":       true,
		"/site/notes.txt~":              true,
		"/site/src/git/file.js":         false,
		"/site/docs/node_modules.md":    false,
	}

	for path, want := range tests {
		assert.Equal(t, want, ShouldIgnore(root, filepath.FromSlash(path), ignore), path)
	}
}

func TestFilter(t *testing.T) {
	inCh := make(chan model.WatchEvent, 3)
	inCh <- model.WatchEvent{Path: filepath.FromSlash("/site/a.html")}
	inCh <- model.WatchEvent{Path: filepath.FromSlash("/site/.git/index")}
	inCh <- model.WatchEvent{Path: filepath.FromSlash("/site/b.css")}
	close(inCh)

	events := collect(Filter(inCh, nil, filepath.FromSlash("/site"), []string{".git"}))
	require.Len(t, events, 2)
	assert.Equal(t, filepath.FromSlash("/site/a.html"), events[0].Path)
	assert.Equal(t, filepath.FromSlash("/site/b.css"), events[1].Path)
}

func TestChecksumFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "style.css")
	require.NoError(t, os.WriteFile(path, []byte("a{}"), 0644))

	cf := NewChecksumFilter()
	modified := model.WatchEvent{Path: path, Kind: model.EventModified}

	assert.True(t, cf.Changed(modified), "first sighting passes")
	assert.False(t, cf.Changed(modified), "same content is dropped")

	require.NoError(t, os.WriteFile(path, []byte("b{}"), 0644))
	assert.True(t, cf.Changed(modified), "new content passes")

	require.NoError(t, os.Remove(path))
	assert.True(t, cf.Changed(model.WatchEvent{Path: path, Kind: model.EventRemoved}))
	assert.False(t, cf.Changed(modified), "unreadable file is skipped")

	require.NoError(t, os.WriteFile(path, []byte("b{}"), 0644))
	assert.True(t, cf.Changed(modified), "cache was cleared by removal")
}
