package services

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/prepmate/prepmate/internal/extract"
	"github.com/prepmate/prepmate/internal/models"
	pgrepo "github.com/prepmate/prepmate/internal/repositories/postgres"
	"github.com/prepmate/prepmate/internal/storage"
	"github.com/prepmate/prepmate/internal/utils"
)

type UploadResumeResult struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	ExtractedText string `json:"extracted_text"`
}

type ResumeService interface {
	Upload(ctx context.Context, userID, planID, fileName string, data []byte) (*UploadResumeResult, error)
	LatestByPlan(ctx context.Context, userID, planID string) (*models.ResumeFile, error)
}

type resumeService struct {
	repo     pgrepo.ResumeFileRepository
	uploader storage.Uploader
	log      *logrus.Logger
}

func NewResumeService(repo pgrepo.ResumeFileRepository, uploader storage.Uploader, log *logrus.Logger) ResumeService {
	return &resumeService{repo: repo, uploader: uploader, log: log}
}

// Upload stores the PDF, extracts its text, and persists both. Extraction
// failure aborts the upload: a resume without text cannot back a
// resume-based interview.
func (s *resumeService) Upload(ctx context.Context, userID, planID, fileName string, data []byte) (*UploadResumeResult, error) {
	const op = "ResumeService.Upload"

	if userID == "" || planID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and plan_id are required", nil)
	}
	if len(data) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "empty file", nil)
	}

	text, err := extract.ResumeText(data, "application/pdf")
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "could not extract text from pdf", err)
	}

	objectName := "resumes/" + userID + "/" + uuid.NewString() + ".pdf"
	url, err := s.uploader.Upload(ctx, objectName, "application/pdf", bytes.NewReader(data))
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to store file", err)
	}

	row := &models.ResumeFile{
		ID:            uuid.NewString(),
		UserID:        userID,
		PlanID:        planID,
		FileName:      fileName,
		FilePath:      url,
		FileSize:      len(data),
		MimeType:      "application/pdf",
		ExtractedText: text,
		UploadAt:      time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to persist resume metadata", err)
	}

	return &UploadResumeResult{ID: row.ID, URL: url, ExtractedText: text}, nil
}

func (s *resumeService) LatestByPlan(ctx context.Context, userID, planID string) (*models.ResumeFile, error) {
	const op = "ResumeService.LatestByPlan"

	row, err := s.repo.LatestByPlan(ctx, userID, planID)
	if err != nil {
		return nil, utils.E(utils.CodeNotFound, op, "no resume uploaded for this plan", err)
	}
	return row, nil
}
