package pipeline

import (
	"bytes"
	"crypto/sha256"
	"io"
	"os"
	"sync"

	"liveserve/internal/logger"
	"liveserve/internal/model"

	"go.uber.org/zap"
)

// ChecksumFilter drops events for files whose content hash did not change
// since the last event that passed, such as an editor saving without edits.
type ChecksumFilter struct {
	mu    sync.Mutex
	cache map[string][]byte
}

func NewChecksumFilter() *ChecksumFilter {
	return &ChecksumFilter{
		cache: make(map[string][]byte),
	}
}

func (cf *ChecksumFilter) Run(inCh <-chan model.WatchEvent, done <-chan struct{}) <-chan model.WatchEvent {
	outCh := make(chan model.WatchEvent, cap(inCh))

	go func() {
		defer close(outCh)

		for event := range inCh {
			if !cf.Changed(event) {
				continue
			}
			if !send(outCh, done, event) {
				return
			}
		}
	}()

	return outCh
}

func (cf *ChecksumFilter) Changed(event model.WatchEvent) bool {
	if event.Kind == model.EventRemoved {
		cf.mu.Lock()
		delete(cf.cache, event.Path)
		cf.mu.Unlock()
		return true
	}

	sum, err := checksum(event.Path)
	if err != nil {
		logger.Log.Debug("checksum failed, skipping",
			zap.String("path", event.Path),
			zap.Error(err))
		return false
	}

	cf.mu.Lock()
	defer cf.mu.Unlock()

	prev, exists := cf.cache[event.Path]
	if exists && bytes.Equal(prev, sum) {
		logger.Log.Debug("checksum unchanged, skipping",
			zap.String("path", event.Path))
		return false
	}

	cf.cache[event.Path] = sum
	return true
}

func checksum(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}
