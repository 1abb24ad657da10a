package repository

import (
	"time"

	"liveserve/internal/model"

	"gorm.io/gorm"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Save(msg model.ReloadMessage, events, clients int, sentAt time.Time) error {
	record := model.ReloadRecord{
		Kind:    msg.Kind,
		Path:    msg.Path,
		Events:  events,
		Clients: clients,
		SentAt:  sentAt,
	}

	return r.db.Create(&record).Error
}

func (r *HistoryRepository) GetRecent(limit int) ([]model.ReloadRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []model.ReloadRecord
	result := r.db.
		Order("sent_at desc").
		Order("id desc").
		Limit(limit).
		Find(&records)

	return records, result.Error
}
