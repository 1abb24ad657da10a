package daemon

import (
	"sync"
	"time"

	"liveserve/internal/model"
)

type State struct {
	mu         sync.RWMutex
	StartedAt  time.Time
	Watching   bool
	Reloads    int
	LastReload *time.Time
}

func NewState(startedAt time.Time) *State {
	return &State{StartedAt: startedAt}
}

func (s *State) RecordReload(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Reloads++
	s.LastReload = &at
}

func (s *State) SetWatching(watching bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Watching = watching
}

func (s *State) Snapshot(root, addr string, clients int) model.StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.StatusSnapshot{
		Root:       root,
		Addr:       addr,
		StartedAt:  s.StartedAt,
		Watching:   s.Watching,
		Clients:    clients,
		Reloads:    s.Reloads,
		LastReload: s.LastReload,
	}
}
