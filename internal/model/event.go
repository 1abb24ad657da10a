package model

import "time"

type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventRemoved  EventKind = "removed"
)

type WatchEvent struct {
	Path      string
	Kind      EventKind
	Timestamp time.Time
}
