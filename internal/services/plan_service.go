package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/prepmate/prepmate/internal/ai"
	"github.com/prepmate/prepmate/internal/cache"
	"github.com/prepmate/prepmate/internal/models"
	mongorepo "github.com/prepmate/prepmate/internal/repositories/mongo"
	"github.com/prepmate/prepmate/internal/utils"
)

const planCacheTTL = 5 * time.Minute

type CreatePlanInput struct {
	Title           string
	Target          models.PlanTarget
	ExperienceLevel string
}

type PlanService interface {
	Create(ctx context.Context, userID string, in CreatePlanInput) (*models.PreparationPlan, error)
	Get(ctx context.Context, userID, planID string) (*models.PreparationPlan, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.PreparationPlan, error)
	Delete(ctx context.Context, userID, planID string) error
	SetStatus(ctx context.Context, userID, planID string, status models.PlanStatus) error
	SetTopicPinned(ctx context.Context, userID, planID, topicID string, pinned bool) error
	SetQuestionRating(ctx context.Context, userID, planID, questionID string, rating int) error

	GenerateLearning(ctx context.Context, userID, planID string) (*models.PreparationPlan, error)
	GeneratePractice(ctx context.Context, userID, planID string) (*models.PreparationPlan, error)
}

type planService struct {
	plans mongorepo.PlanRepository
	model *ai.Client
	cache cache.Cache
	log   *logrus.Logger
}

func NewPlanService(plans mongorepo.PlanRepository, model *ai.Client, c cache.Cache, log *logrus.Logger) PlanService {
	return &planService{plans: plans, model: model, cache: c, log: log}
}

// Create validates input, issues exactly one model call, and inserts the
// whole document in one write. A model failure or shape violation leaves
// nothing behind.
func (s *planService) Create(ctx context.Context, userID string, in CreatePlanInput) (*models.PreparationPlan, error) {
	const op = "PlanService.Create"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "user_id is required", nil)
	}
	if strings.TrimSpace(in.Title) == "" ||
		strings.TrimSpace(in.Target.Role) == "" ||
		strings.TrimSpace(in.Target.Company) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "title, target.role, and target.company are required", nil)
	}

	var content planContentShape
	prompt := ai.PlanPrompt(in.Target.Role, in.Target.Company, in.Target.Level, in.ExperienceLevel)
	if err := s.model.Invoke(ctx, prompt, &content); err != nil {
		return nil, mapModelErr(op, err)
	}
	if err := content.validate(); err != nil {
		s.log.WithError(err).Warn("plan content failed schema validation")
		return nil, utils.E(utils.CodeInternal, op, "generated plan was invalid, please try again", err)
	}

	now := time.Now().UTC()
	plan := &models.PreparationPlan{
		PlanID:            uuid.NewString(),
		UserID:            userID,
		Title:             in.Title,
		Target:            in.Target,
		ExperienceLevel:   in.ExperienceLevel,
		Status:            models.PlanNotStarted,
		StudyTopics:       topicsToModel(content.StudyTopics, 0),
		PreparedQuestions: questionsToModel(content.PreparedQuestions),
		PracticeProblems:  problemsToModel(content.PracticeProblems, 0),
		StoryBank:         storiesToModel(content.StoryBank),
		Sessions:          []models.MockInterviewSession{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create plan", err)
	}
	return plan, nil
}

func (s *planService) Get(ctx context.Context, userID, planID string) (*models.PreparationPlan, error) {
	const op = "PlanService.Get"

	if planID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "plan_id is required", nil)
	}

	if s.cache != nil {
		var cached models.PreparationPlan
		if hit, _ := s.cache.GetJSON(ctx, planCacheKey(planID), &cached); hit {
			if cached.UserID != userID {
				return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
			}
			return &cached, nil
		}
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

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, planCacheKey(planID), plan, planCacheTTL)
	}
	return plan, nil
}

func (s *planService) ListByUser(ctx context.Context, userID string, limit int) ([]models.PreparationPlan, error) {
	const op = "PlanService.ListByUser"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "user_id is required", nil)
	}
	rows, err := s.plans.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list plans", err)
	}
	return rows, nil
}

func (s *planService) Delete(ctx context.Context, userID, planID string) error {
	const op = "PlanService.Delete"

	if _, err := s.Get(ctx, userID, planID); err != nil {
		return err
	}
	if err := s.plans.Delete(ctx, planID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "plan not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to delete plan", err)
	}
	s.invalidate(ctx, planID)
	return nil
}

// SetStatus is independent of session state: the user marks progress
// manually.
func (s *planService) SetStatus(ctx context.Context, userID, planID string, status models.PlanStatus) error {
	const op = "PlanService.SetStatus"

	switch status {
	case models.PlanNotStarted, models.PlanInProgress, models.PlanCompleted:
	default:
		return utils.E(utils.CodeInvalidArgument, op, "invalid status", nil)
	}
	if _, err := s.Get(ctx, userID, planID); err != nil {
		return err
	}
	if err := s.plans.SetStatus(ctx, planID, status); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to set status", err)
	}
	s.invalidate(ctx, planID)
	return nil
}

func (s *planService) SetTopicPinned(ctx context.Context, userID, planID, topicID string, pinned bool) error {
	const op = "PlanService.SetTopicPinned"

	if topicID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "topic_id is required", nil)
	}
	if _, err := s.Get(ctx, userID, planID); err != nil {
		return err
	}
	if err := s.plans.SetTopicPinned(ctx, planID, topicID, pinned); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "topic not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to pin topic", err)
	}
	s.invalidate(ctx, planID)
	return nil
}

func (s *planService) SetQuestionRating(ctx context.Context, userID, planID, questionID string, rating int) error {
	const op = "PlanService.SetQuestionRating"

	if questionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "question_id is required", nil)
	}
	if rating < 0 || rating > 5 {
		return utils.E(utils.CodeInvalidArgument, op, "rating must be between 0 and 5", nil)
	}
	if _, err := s.Get(ctx, userID, planID); err != nil {
		return err
	}
	if err := s.plans.SetQuestionRating(ctx, planID, questionID, rating); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "question not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to rate question", err)
	}
	s.invalidate(ctx, planID)
	return nil
}

// GenerateLearning appends; it never replaces. Existing titles ride along
// in the prompt as a soft duplicate discouragement only.
func (s *planService) GenerateLearning(ctx context.Context, userID, planID string) (*models.PreparationPlan, error) {
	const op = "PlanService.GenerateLearning"

	plan, err := s.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}

	existing := make([]string, 0, len(plan.StudyTopics))
	for _, t := range plan.StudyTopics {
		existing = append(existing, t.Title)
	}

	var content learningShape
	prompt := ai.MoreLearningPrompt(plan.Target.Role, plan.Target.Company, existing)
	if err := s.model.Invoke(ctx, prompt, &content); err != nil {
		return nil, mapModelErr(op, err)
	}
	if err := content.validate(); err != nil {
		s.log.WithError(err).Warn("learning content failed schema validation")
		return nil, utils.E(utils.CodeInternal, op, "generated items were invalid, please try again", err)
	}

	topics := topicsToModel(content.StudyTopics, len(plan.StudyTopics))
	questions := questionsToModel(content.PreparedQuestions)
	if err := s.plans.AppendLearning(ctx, planID, topics, questions); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to append learning items", err)
	}
	s.invalidate(ctx, planID)

	plan.StudyTopics = append(plan.StudyTopics, topics...)
	plan.PreparedQuestions = append(plan.PreparedQuestions, questions...)
	return plan, nil
}

func (s *planService) GeneratePractice(ctx context.Context, userID, planID string) (*models.PreparationPlan, error) {
	const op = "PlanService.GeneratePractice"

	plan, err := s.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}

	existing := make([]string, 0, len(plan.PracticeProblems))
	for _, p := range plan.PracticeProblems {
		existing = append(existing, p.Title)
	}

	var content practiceShape
	prompt := ai.MorePracticePrompt(plan.Target.Role, plan.Target.Company, existing)
	if err := s.model.Invoke(ctx, prompt, &content); err != nil {
		return nil, mapModelErr(op, err)
	}
	if err := content.validate(); err != nil {
		s.log.WithError(err).Warn("practice content failed schema validation")
		return nil, utils.E(utils.CodeInternal, op, "generated items were invalid, please try again", err)
	}

	problems := problemsToModel(content.PracticeProblems, len(plan.PracticeProblems))
	if err := s.plans.AppendPractice(ctx, planID, problems); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to append practice items", err)
	}
	s.invalidate(ctx, planID)

	plan.PracticeProblems = append(plan.PracticeProblems, problems...)
	return plan, nil
}

func (s *planService) invalidate(ctx context.Context, planID string) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, planCacheKey(planID))
	}
}

func planCacheKey(planID string) string { return "plan:" + planID }

// mapModelErr translates model-client failures into the service error
// taxonomy. Raw model text never rides along in the safe message.
func mapModelErr(op string, err error) error {
	if errors.Is(err, ai.ErrModelUnavailable) {
		return utils.E(utils.CodeUnavailable, op, "assistant is temporarily unavailable, please retry", err)
	}
	var me *ai.MalformedError
	if errors.As(err, &me) {
		return utils.E(utils.CodeInternal, op, "assistant returned an unusable answer, please try again", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return utils.E(utils.CodeUnavailable, op, "assistant call timed out, please retry", err)
	}
	return utils.E(utils.CodeInternal, op, "assistant call failed", err)
}
