package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prepmate/prepmate/internal/models"
)

type FeedbackRecordRepo interface {
	Upsert(ctx context.Context, rec *models.FeedbackRecord) error
	ListRecent(ctx context.Context, limit int) ([]models.FeedbackRecord, error)
}

type feedbackRecordRepo struct {
	db *gorm.DB
}

func NewFeedbackRecordRepo(db *gorm.DB) FeedbackRecordRepo {
	return &feedbackRecordRepo{db: db}
}

// Upsert keys on session_id so a replayed archive job never duplicates the
// analytics row.
func (r *feedbackRecordRepo) Upsert(ctx context.Context, rec *models.FeedbackRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).
		Create(rec).Error
}

func (r *feedbackRecordRepo) ListRecent(ctx context.Context, limit int) ([]models.FeedbackRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []models.FeedbackRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
