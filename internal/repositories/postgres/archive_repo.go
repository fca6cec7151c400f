package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/prepmate/prepmate/internal/models"
)

type TranscriptArchiveRepo interface {
	InsertBatch(ctx context.Context, rows []models.TranscriptArchive) error
	ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.TranscriptArchive, error)
}

type transcriptArchiveRepo struct {
	db *gorm.DB
}

func NewTranscriptArchiveRepo(db *gorm.DB) TranscriptArchiveRepo {
	return &transcriptArchiveRepo{db: db}
}

func (r *transcriptArchiveRepo) InsertBatch(ctx context.Context, rows []models.TranscriptArchive) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, 100).Error
}

func (r *transcriptArchiveRepo) ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.TranscriptArchive, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []models.TranscriptArchive
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("seq ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
