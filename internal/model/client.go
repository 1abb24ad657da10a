package model

import "time"

type ClientConnection struct {
	ID       string    `json:"id"`
	Open     bool      `json:"open"`
	LastSeen time.Time `json:"last_seen"`
}
