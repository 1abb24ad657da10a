package model

import "time"

type StatusSnapshot struct {
	Root       string     `json:"root"`
	Addr       string     `json:"addr"`
	StartedAt  time.Time  `json:"started_at"`
	Watching   bool       `json:"watching"`
	Clients    int        `json:"clients"`
	Reloads    int        `json:"reloads"`
	LastReload *time.Time `json:"last_reload"`
}
