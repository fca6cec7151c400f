package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/prepmate/prepmate/internal/ai"
	"github.com/prepmate/prepmate/internal/logger"
	"github.com/prepmate/prepmate/internal/models"
	mongorepo "github.com/prepmate/prepmate/internal/repositories/mongo"
	pgrepo "github.com/prepmate/prepmate/internal/repositories/postgres"
	"github.com/prepmate/prepmate/internal/utils"
)

const InterviewTypeResume = "resume"

type StartSessionInput struct {
	Type          string
	Difficulty    string
	ResumeContent string // pre-extracted text supplied by the client
	ResumeRef     string // stored resume file id, resolved server-side
}

type StartSessionResult struct {
	SessionID     string `json:"session_id"`
	Opening       string `json:"opening,omitempty"`
	FirstQuestion string `json:"first_question"`
}

type EndSessionResult struct {
	SessionID       string                 `json:"session_id"`
	Feedback        *models.FeedbackReport `json:"feedback"`
	DurationSeconds int64                  `json:"duration_seconds"`
}

// Archiver hands a concluded session off for durable archival; enqueue
// failures are logged, never surfaced.
type Archiver interface {
	EnqueueSessionArchive(ctx context.Context, userID, planID, sessionID string) error
}

// InterviewService is the server-side state machine for one mock-interview
// session: start -> next* -> end, with warning as a read-only advisory.
type InterviewService interface {
	Start(ctx context.Context, userID, planID string, in StartSessionInput) (*StartSessionResult, error)
	Next(ctx context.Context, userID, planID, sessionID string, transcript []models.TranscriptEntry) (string, error)
	Warning(ctx context.Context, userID, planID, sessionID string, transcript []models.TranscriptEntry) (string, error)
	End(ctx context.Context, userID, planID, sessionID string, transcript []models.TranscriptEntry) (*EndSessionResult, error)
	GetSession(ctx context.Context, userID, planID, sessionID string) (*models.MockInterviewSession, error)
}

type interviewService struct {
	plans    mongorepo.PlanRepository
	resumes  pgrepo.ResumeFileRepository
	model    *ai.Client
	archiver Archiver
	log      *logrus.Logger

	now func() time.Time
}

func NewInterviewService(plans mongorepo.PlanRepository, resumes pgrepo.ResumeFileRepository, model *ai.Client, archiver Archiver, log *logrus.Logger) InterviewService {
	return &interviewService{
		plans:    plans,
		resumes:  resumes,
		model:    model,
		archiver: archiver,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *interviewService) Start(ctx context.Context, userID, planID string, in StartSessionInput) (*StartSessionResult, error) {
	const op = "InterviewService.Start"

	plan, err := s.ownedPlan(ctx, op, userID, planID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Type) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "type is required", nil)
	}
	if in.Difficulty == "" {
		in.Difficulty = "medium"
	}

	resumeText := in.ResumeContent
	resumeRef := in.ResumeRef
	if in.Type == InterviewTypeResume && resumeText == "" {
		// resume-based sessions cannot start without extracted text
		row, rerr := s.resumes.LatestByPlan(ctx, userID, planID)
		if rerr != nil || row.ExtractedText == "" {
			return nil, utils.E(utils.CodeInvalidArgument, op, "resume interview requires an uploaded resume with extracted text", rerr)
		}
		resumeText = row.ExtractedText
		if resumeRef == "" {
			resumeRef = row.ID
		}
	}

	var opening openingShape
	prompt := ai.OpeningPrompt(plan.Target.Role, plan.Target.Company, in.Type, in.Difficulty, resumeText)
	if err := s.model.Invoke(ctx, prompt, &opening); err != nil {
		return nil, mapModelErr(op, err)
	}
	if err := opening.validate(); err != nil {
		s.log.WithError(err).Warn("opening failed schema validation")
		return nil, utils.E(utils.CodeInternal, op, "could not start interview, please try again", err)
	}

	now := s.now()
	sess := &models.MockInterviewSession{
		SessionID:     uuid.NewString(),
		InterviewType: in.Type,
		Difficulty:    in.Difficulty,
		ResumeRef:     resumeRef,
		StartedAt:     now,
		Transcript: []models.TranscriptEntry{
			{Speaker: models.SpeakerAI, Content: opening.FirstQuestion, Timestamp: now},
		},
		Status: models.SessionActive,
	}

	if err := s.plans.AppendSession(ctx, planID, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}

	return &StartSessionResult{
		SessionID:     sess.SessionID,
		Opening:       opening.Opening,
		FirstQuestion: opening.FirstQuestion,
	}, nil
}

// Next replaces the stored transcript with the caller's copy (the client is
// the scribe of record during the active phase), asks the model for the
// next question, and persists transcript plus the one new ai entry in a
// single targeted sub-document write.
func (s *interviewService) Next(ctx context.Context, userID, planID, sessionID string, transcript []models.TranscriptEntry) (string, error) {
	const op = "InterviewService.Next"

	sess, err := s.activeSession(ctx, op, userID, planID, sessionID)
	if err != nil {
		return "", err
	}

	transcript = normalizeTranscript(transcript, s.now())

	var next nextQuestionShape
	prompt := ai.NextQuestionPrompt(sess.InterviewType, sess.Difficulty, renderTranscript(transcript))
	if err := s.model.Invoke(ctx, prompt, &next); err != nil {
		return "", mapModelErr(op, err)
	}
	if err := next.validate(); err != nil {
		s.log.WithError(err).Warn("next question failed schema validation")
		return "", utils.E(utils.CodeInternal, op, "could not generate the next question, please try again", err)
	}

	stored := append(transcript, models.TranscriptEntry{
		Speaker:   models.SpeakerAI,
		Content:   next.NextQuestion,
		Timestamp: s.now(),
	})

	matched, err := s.plans.ReplaceTranscript(ctx, planID, sessionID, stored)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to persist transcript", err)
	}
	if !matched {
		// concluded between the read above and this write
		return "", utils.E(utils.CodeNotFound, op, "session not found", nil)
	}

	return next.NextQuestion, nil
}

// Warning is advisory only: one model call, nothing persisted.
func (s *interviewService) Warning(ctx context.Context, userID, planID, sessionID string, transcript []models.TranscriptEntry) (string, error) {
	const op = "InterviewService.Warning"

	sess, err := s.activeSession(ctx, op, userID, planID, sessionID)
	if err != nil {
		return "", err
	}

	var w warningShape
	prompt := ai.WarningPrompt(sess.InterviewType, renderTranscript(normalizeTranscript(transcript, s.now())))
	if err := s.model.Invoke(ctx, prompt, &w); err != nil {
		return "", mapModelErr(op, err)
	}
	if err := w.validate(); err != nil {
		return "", utils.E(utils.CodeInternal, op, "could not generate a suggestion", err)
	}
	return w.Warning, nil
}

// End seals the session. The conclude write targets only the matching
// active sub-document; when that write matches nothing the session was
// already concluded by a racing caller, which is logged and treated as
// success.
func (s *interviewService) End(ctx context.Context, userID, planID, sessionID string, transcript []models.TranscriptEntry) (*EndSessionResult, error) {
	const op = "InterviewService.End"

	sess, err := s.session(ctx, op, userID, planID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SessionConcluded {
		logger.ForSession(s.log, planID, sessionID).
			Info("end called on concluded session, no-op")
		return &EndSessionResult{
			SessionID:       sessionID,
			Feedback:        sess.Feedback,
			DurationSeconds: sess.DurationSeconds,
		}, nil
	}

	transcript = normalizeTranscript(transcript, s.now())
	if len(transcript) == 0 {
		transcript = sess.Transcript
	}

	duration := int64(s.now().Sub(sess.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	var fb feedbackShape
	prompt := ai.FeedbackPrompt(sess.InterviewType, sess.Difficulty, renderTranscript(transcript))
	if err := s.model.Invoke(ctx, prompt, &fb); err != nil {
		return nil, mapModelErr(op, err)
	}
	if err := fb.validate(); err != nil {
		s.log.WithError(err).Warn("feedback failed schema validation")
		return nil, utils.E(utils.CodeInternal, op, "could not generate feedback, please try again", err)
	}
	report := fb.toModel()

	matched, err := s.plans.ConcludeSession(ctx, planID, sessionID, transcript, report, duration)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to conclude session", err)
	}
	if !matched {
		// raced with another conclude: log and report the stored result
		logger.ForSession(s.log, planID, sessionID).
			Info("conclude matched no active session, no-op")
		if stored, gerr := s.plans.GetSession(ctx, planID, sessionID); gerr == nil {
			return &EndSessionResult{
				SessionID:       sessionID,
				Feedback:        stored.Feedback,
				DurationSeconds: stored.DurationSeconds,
			}, nil
		}
		return &EndSessionResult{SessionID: sessionID}, nil
	}

	if s.archiver != nil {
		if aerr := s.archiver.EnqueueSessionArchive(ctx, userID, planID, sessionID); aerr != nil {
			s.log.WithError(aerr).Warn("failed to enqueue session archive")
		}
	}

	return &EndSessionResult{
		SessionID:       sessionID,
		Feedback:        report,
		DurationSeconds: duration,
	}, nil
}

func (s *interviewService) GetSession(ctx context.Context, userID, planID, sessionID string) (*models.MockInterviewSession, error) {
	const op = "InterviewService.GetSession"
	return s.session(ctx, op, userID, planID, sessionID)
}

func (s *interviewService) ownedPlan(ctx context.Context, op, userID, planID string) (*models.PreparationPlan, error) {
	if planID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "plan_id is required", nil)
	}
	plan, err := s.plans.GetByPlanID(ctx, planID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "plan not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get plan", err)
	}
	if plan.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	return plan, nil
}

func (s *interviewService) session(ctx context.Context, op, userID, planID, sessionID string) (*models.MockInterviewSession, error) {
	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if _, err := s.ownedPlan(ctx, op, userID, planID); err != nil {
		return nil, err
	}
	sess, err := s.plans.GetSession(ctx, planID, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	return sess, nil
}

// activeSession treats a concluded session the same as a missing one.
func (s *interviewService) activeSession(ctx context.Context, op, userID, planID, sessionID string) (*models.MockInterviewSession, error) {
	sess, err := s.session(ctx, op, userID, planID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionActive {
		return nil, utils.E(utils.CodeNotFound, op, "session not found", nil)
	}
	return sess, nil
}

// normalizeTranscript keeps client order but clamps timestamps so they are
// non-decreasing; zero timestamps are filled from the previous entry.
func normalizeTranscript(in []models.TranscriptEntry, now time.Time) []models.TranscriptEntry {
	out := make([]models.TranscriptEntry, len(in))
	copy(out, in)

	var prev time.Time
	for i := range out {
		if out[i].Timestamp.IsZero() {
			if prev.IsZero() {
				out[i].Timestamp = now
			} else {
				out[i].Timestamp = prev
			}
		}
		if out[i].Timestamp.Before(prev) {
			out[i].Timestamp = prev
		}
		prev = out[i].Timestamp
	}
	return out
}

func renderTranscript(entries []models.TranscriptEntry) string {
	var b strings.Builder
	for _, e := range entries {
		switch e.Speaker {
		case models.SpeakerAI:
			b.WriteString("Interviewer: ")
		default:
			b.WriteString("Candidate: ")
		}
		b.WriteString(e.Content)
		b.WriteString("\n")
	}
	return b.String()
}
