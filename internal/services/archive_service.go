package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/prepmate/prepmate/internal/models"
	mongorepo "github.com/prepmate/prepmate/internal/repositories/mongo"
	pgrepo "github.com/prepmate/prepmate/internal/repositories/postgres"
	"github.com/prepmate/prepmate/internal/utils"
)

// ArchiveService mirrors a concluded session out of the hot Mongo document
// into Postgres rows: one transcript row per utterance plus one flat
// feedback record. Runs from the archive worker, never on a request path.
type ArchiveService interface {
	ArchiveSession(ctx context.Context, userID, planID, sessionID string) error
	ListFeedback(ctx context.Context, limit int) ([]models.FeedbackRecord, error)
	ListTranscript(ctx context.Context, userID, sessionID string, limit int) ([]models.TranscriptArchive, error)
}

// Embedder is optional; when absent archive rows carry no vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type archiveService struct {
	plans      mongorepo.PlanRepository
	transcript pgrepo.TranscriptArchiveRepo
	feedback   pgrepo.FeedbackRecordRepo
	embedder   Embedder
	log        *logrus.Logger
}

func NewArchiveService(plans mongorepo.PlanRepository, transcript pgrepo.TranscriptArchiveRepo, feedback pgrepo.FeedbackRecordRepo, embedder Embedder, log *logrus.Logger) ArchiveService {
	return &archiveService{
		plans:      plans,
		transcript: transcript,
		feedback:   feedback,
		embedder:   embedder,
		log:        log,
	}
}

func (s *archiveService) ArchiveSession(ctx context.Context, userID, planID, sessionID string) error {
	const op = "ArchiveService.ArchiveSession"

	sess, err := s.plans.GetSession(ctx, planID, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	if sess.Status != models.SessionConcluded {
		return utils.E(utils.CodeConflict, op, "session is not concluded yet", nil)
	}

	meta, _ := json.Marshal(map[string]string{
		"interview_type": sess.InterviewType,
		"difficulty":     sess.Difficulty,
	})

	rows := make([]models.TranscriptArchive, 0, len(sess.Transcript))
	for i, e := range sess.Transcript {
		row := models.TranscriptArchive{
			ID:        uuid.NewString(),
			UserID:    userID,
			PlanID:    planID,
			SessionID: sessionID,
			Seq:       i,
			Speaker:   e.Speaker,
			Content:   e.Content,
			SpokenAt:  e.Timestamp,
			Metadata:  datatypes.JSON(meta),
		}
		if s.embedder != nil {
			if vec, eerr := s.embedder.Embed(ctx, e.Content); eerr == nil && len(vec) > 0 {
				row.Embedding = pgvector.NewVector(vec)
			}
		}
		rows = append(rows, row)
	}

	if err := s.transcript.InsertBatch(ctx, rows); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to archive transcript", err)
	}

	if sess.Feedback != nil {
		report, _ := json.Marshal(sess.Feedback)
		rec := &models.FeedbackRecord{
			ID:              uuid.NewString(),
			UserID:          userID,
			PlanID:          planID,
			SessionID:       sessionID,
			InterviewType:   sess.InterviewType,
			OverallScore:    sess.Feedback.OverallScore,
			DurationSeconds: sess.DurationSeconds,
			Strengths:       pq.StringArray(sess.Feedback.Strengths),
			Improvements:    pq.StringArray(sess.Feedback.Improvements),
			Report:          datatypes.JSON(report),
			CreatedAt:       time.Now().UTC(),
		}
		if err := s.feedback.Upsert(ctx, rec); err != nil {
			return utils.E(utils.CodeInternal, op, "failed to record feedback", err)
		}
	}

	return nil
}

func (s *archiveService) ListFeedback(ctx context.Context, limit int) ([]models.FeedbackRecord, error) {
	const op = "ArchiveService.ListFeedback"

	rows, err := s.feedback.ListRecent(ctx, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list feedback records", err)
	}
	return rows, nil
}

func (s *archiveService) ListTranscript(ctx context.Context, userID, sessionID string, limit int) ([]models.TranscriptArchive, error) {
	const op = "ArchiveService.ListTranscript"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	rows, err := s.transcript.ListBySession(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list archived transcript", err)
	}
	return rows, nil
}
