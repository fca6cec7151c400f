package services

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/prepmate/prepmate/internal/models"
)

// Model-response shapes, one per operation, with explicit validators.
// A shape violation aborts the whole operation; nothing is coerced.

type planContentShape struct {
	StudyTopics       []studyTopicShape `json:"study_topics"`
	PreparedQuestions []questionShape   `json:"prepared_questions"`
	PracticeProblems  []problemShape    `json:"practice_problems"`
	StoryBank         []storyShape      `json:"story_bank"`
}

type studyTopicShape struct {
	Title     string   `json:"title"`
	Category  string   `json:"category"`
	Priority  string   `json:"priority"`
	Resources []string `json:"resources"`
}

type questionShape struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

type problemShape struct {
	Title      string `json:"title"`
	Statement  string `json:"statement"`
	Difficulty string `json:"difficulty"`
	Hint       string `json:"hint"`
}

type storyShape struct {
	Title     string `json:"title"`
	Situation string `json:"situation"`
	Action    string `json:"action"`
	Result    string `json:"result"`
}

func (s *planContentShape) validate() error {
	if len(s.StudyTopics) == 0 {
		return errors.New("study_topics is empty")
	}
	if len(s.PracticeProblems) == 0 {
		return errors.New("practice_problems is empty")
	}
	for _, t := range s.StudyTopics {
		if strings.TrimSpace(t.Title) == "" {
			return errors.New("study topic with empty title")
		}
	}
	for _, p := range s.PracticeProblems {
		if strings.TrimSpace(p.Title) == "" {
			return errors.New("practice problem with empty title")
		}
	}
	return nil
}

type learningShape struct {
	StudyTopics       []studyTopicShape `json:"study_topics"`
	PreparedQuestions []questionShape   `json:"prepared_questions"`
}

func (s *learningShape) validate() error {
	if len(s.StudyTopics) == 0 && len(s.PreparedQuestions) == 0 {
		return errors.New("no learning items generated")
	}
	return nil
}

type practiceShape struct {
	PracticeProblems []problemShape `json:"practice_problems"`
}

func (s *practiceShape) validate() error {
	if len(s.PracticeProblems) == 0 {
		return errors.New("no practice problems generated")
	}
	return nil
}

type openingShape struct {
	Opening       string `json:"opening"`
	FirstQuestion string `json:"first_question"`
}

func (s *openingShape) validate() error {
	if strings.TrimSpace(s.FirstQuestion) == "" {
		return errors.New("first_question is empty")
	}
	return nil
}

type nextQuestionShape struct {
	NextQuestion string `json:"next_question"`
}

func (s *nextQuestionShape) validate() error {
	if strings.TrimSpace(s.NextQuestion) == "" {
		return errors.New("next_question is empty")
	}
	return nil
}

type warningShape struct {
	Warning string `json:"warning"`
}

func (s *warningShape) validate() error {
	if strings.TrimSpace(s.Warning) == "" {
		return errors.New("warning is empty")
	}
	return nil
}

type feedbackShape struct {
	OverallScore  float64 `json:"overall_score"`
	Summary       string  `json:"summary"`
	ContentScores []struct {
		Dimension string  `json:"dimension"`
		Score     float64 `json:"score"`
		Rationale string  `json:"rationale"`
	} `json:"content_scores"`
	Communication struct {
		Clarity      float64 `json:"clarity"`
		Conciseness  float64 `json:"conciseness"`
		Confidence   float64 `json:"confidence"`
		FillerRemark string  `json:"filler_remark"`
	} `json:"communication"`
	Exemplars []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"exemplars"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

func (s *feedbackShape) validate() error {
	if s.OverallScore < 0 || s.OverallScore > 100 {
		return errors.New("overall_score out of range")
	}
	if len(s.ContentScores) == 0 {
		return errors.New("content_scores is empty")
	}
	return nil
}

func (s *feedbackShape) toModel() *models.FeedbackReport {
	fb := &models.FeedbackReport{
		OverallScore: s.OverallScore,
		Summary:      s.Summary,
		Communication: models.CommMetrics{
			Clarity:      s.Communication.Clarity,
			Conciseness:  s.Communication.Conciseness,
			Confidence:   s.Communication.Confidence,
			FillerRemark: s.Communication.FillerRemark,
		},
		Strengths:    s.Strengths,
		Improvements: s.Improvements,
	}
	for _, cs := range s.ContentScores {
		fb.ContentScores = append(fb.ContentScores, models.DimensionScore{
			Dimension: cs.Dimension,
			Score:     cs.Score,
			Rationale: cs.Rationale,
		})
	}
	for _, ex := range s.Exemplars {
		fb.Exemplars = append(fb.Exemplars, models.ExemplarAnswer{
			Question: ex.Question,
			Answer:   ex.Answer,
		})
	}
	return fb
}

func topicsToModel(in []studyTopicShape, startOrder int) []models.StudyTopic {
	out := make([]models.StudyTopic, 0, len(in))
	for i, t := range in {
		out = append(out, models.StudyTopic{
			TopicID:   uuid.NewString(),
			Title:     t.Title,
			Category:  t.Category,
			Priority:  normalizePriority(t.Priority),
			Resources: t.Resources,
			Order:     startOrder + i,
		})
	}
	return out
}

func questionsToModel(in []questionShape) []models.PreparedQuestion {
	out := make([]models.PreparedQuestion, 0, len(in))
	for _, q := range in {
		out = append(out, models.PreparedQuestion{
			QuestionID: uuid.NewString(),
			Question:   q.Question,
			Answer:     q.Answer,
			Category:   q.Category,
		})
	}
	return out
}

func problemsToModel(in []problemShape, startOrder int) []models.PracticeProblem {
	out := make([]models.PracticeProblem, 0, len(in))
	for i, p := range in {
		out = append(out, models.PracticeProblem{
			ProblemID:  uuid.NewString(),
			Title:      p.Title,
			Statement:  p.Statement,
			Difficulty: p.Difficulty,
			Hint:       p.Hint,
			Order:      startOrder + i,
		})
	}
	return out
}

func storiesToModel(in []storyShape) []models.StoryEntry {
	out := make([]models.StoryEntry, 0, len(in))
	for _, s := range in {
		out = append(out, models.StoryEntry{
			StoryID:   uuid.NewString(),
			Title:     s.Title,
			Situation: s.Situation,
			Action:    s.Action,
			Result:    s.Result,
		})
	}
	return out
}

func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high":
		return "high"
	case "low":
		return "low"
	default:
		return "medium"
	}
}
