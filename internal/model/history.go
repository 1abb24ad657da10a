package model

import (
	"time"

	"gorm.io/gorm"
)

// ReloadRecord is one broadcast as stored in the history database.
type ReloadRecord struct {
	gorm.Model
	Kind    MessageKind `gorm:"not null" json:"kind"`
	Path    string      `json:"path"`
	Events  int         `gorm:"not null" json:"events"`
	Clients int         `gorm:"not null" json:"clients"`
	SentAt  time.Time   `gorm:"not null;index" json:"sent_at"`
}
