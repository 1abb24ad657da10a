package pipeline

import (
	"path/filepath"
	"strings"

	"liveserve/internal/model"
)

// Filter drops events whose path, relative to root, has a component matching
// one of the ignore globs. It stops early once done is closed.
func Filter(inCh <-chan model.WatchEvent, done <-chan struct{}, root string, ignoreList []string) <-chan model.WatchEvent {
	outCh := make(chan model.WatchEvent, cap(inCh))

	go func() {
		defer close(outCh)

		for event := range inCh {
			if ShouldIgnore(root, event.Path, ignoreList) {
				continue
			}
			if !send(outCh, done, event) {
				return
			}
		}
	}()

	return outCh
}

func ShouldIgnore(root, path string, ignoreList []string) bool {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}

	parts := strings.Split(filepath.ToSlash(path), "/")

	for _, part := range parts {
		for _, pattern := range ignoreList {
			matched, err := filepath.Match(pattern, part)
			if err == nil && matched {
				return true
			}
		}
	}

	return false
}

// send delivers event unless done closes first.
func send(outCh chan<- model.WatchEvent, done <-chan struct{}, event model.WatchEvent) bool {
	select {
	case outCh <- event:
		return true
	case <-done:
		return false
	}
}
