package model

import (
	"path/filepath"
	"strings"
)

type MessageKind string

const (
	MessageReload    MessageKind = "reload"
	MessageCSSUpdate MessageKind = "cssUpdate"
)

// ReloadMessage is the payload pushed to every live client.
type ReloadMessage struct {
	Kind MessageKind `json:"kind"`
	Path string      `json:"path,omitempty"`
}

// NewReloadMessage collapses a batch of events into a single message. A batch
// made only of stylesheet edits becomes a cssUpdate when cssInject is on;
// anything else asks for a full reload. A single stylesheet is named by its
// URL path relative to root; several leave Path empty so clients refresh
// every stylesheet.
func NewReloadMessage(root string, events []WatchEvent, cssInject bool) ReloadMessage {
	if !cssInject || len(events) == 0 {
		return ReloadMessage{Kind: MessageReload}
	}

	cssPath := events[0].Path
	multiple := false
	for _, ev := range events {
		if ev.Kind == EventRemoved || !IsStylesheet(ev.Path) {
			return ReloadMessage{Kind: MessageReload}
		}
		if ev.Path != cssPath {
			multiple = true
		}
	}

	if multiple {
		return ReloadMessage{Kind: MessageCSSUpdate}
	}

	return ReloadMessage{Kind: MessageCSSUpdate, Path: URLPath(root, cssPath)}
}

func IsStylesheet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".css")
}

// URLPath turns an absolute file path under root into a slash-separated URL
// path. Paths outside root collapse to their base name.
func URLPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "/" + filepath.Base(path)
	}

	return "/" + filepath.ToSlash(rel)
}
