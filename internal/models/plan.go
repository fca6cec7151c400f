package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PlanStatus string

const (
	PlanNotStarted PlanStatus = "not-started"
	PlanInProgress PlanStatus = "in-progress"
	PlanCompleted  PlanStatus = "completed"
)

// PreparationPlan is the root document: one per user per target role.
// Mock-interview sessions are embedded sub-documents, never a separate
// collection.
type PreparationPlan struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID string             `bson:"plan_id" json:"plan_id"` // uuid v4
	UserID string             `bson:"user_id" json:"user_id"`

	Title           string     `bson:"title" json:"title"`
	Target          PlanTarget `bson:"target" json:"target"`
	ExperienceLevel string     `bson:"experience_level,omitempty" json:"experience_level,omitempty"`
	Status          PlanStatus `bson:"status" json:"status"`

	StudyTopics       []StudyTopic           `bson:"study_topics" json:"study_topics"`
	PreparedQuestions []PreparedQuestion     `bson:"prepared_questions" json:"prepared_questions"`
	PracticeProblems  []PracticeProblem      `bson:"practice_problems" json:"practice_problems"`
	StoryBank         []StoryEntry           `bson:"story_bank" json:"story_bank"`
	Sessions          []MockInterviewSession `bson:"sessions" json:"sessions"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

type PlanTarget struct {
	Role    string `bson:"role" json:"role"`
	Company string `bson:"company" json:"company"`
	Level   string `bson:"level,omitempty" json:"level,omitempty"`
}

type StudyTopic struct {
	TopicID   string   `bson:"topic_id" json:"topic_id"` // uuid v4
	Title     string   `bson:"title" json:"title"`
	Category  string   `bson:"category" json:"category"`
	Priority  string   `bson:"priority" json:"priority"` // high|medium|low
	Resources []string `bson:"resources,omitempty" json:"resources,omitempty"`
	Pinned    bool     `bson:"pinned" json:"pinned"`
	Order     int      `bson:"order" json:"order"`
}

type PreparedQuestion struct {
	QuestionID string `bson:"question_id" json:"question_id"`
	Question   string `bson:"question" json:"question"`
	Answer     string `bson:"answer,omitempty" json:"answer,omitempty"`
	Category   string `bson:"category,omitempty" json:"category,omitempty"`
	Pinned     bool   `bson:"pinned" json:"pinned"`
	Rating     int    `bson:"rating" json:"rating"`
}

type PracticeProblem struct {
	ProblemID  string `bson:"problem_id" json:"problem_id"`
	Title      string `bson:"title" json:"title"`
	Statement  string `bson:"statement" json:"statement"`
	Difficulty string `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	Hint       string `bson:"hint,omitempty" json:"hint,omitempty"`
	Pinned     bool   `bson:"pinned" json:"pinned"`
	Order      int    `bson:"order" json:"order"`
}

type StoryEntry struct {
	StoryID   string `bson:"story_id" json:"story_id"`
	Title     string `bson:"title" json:"title"`
	Situation string `bson:"situation,omitempty" json:"situation,omitempty"`
	Action    string `bson:"action,omitempty" json:"action,omitempty"`
	Result    string `bson:"result,omitempty" json:"result,omitempty"`
	Pinned    bool   `bson:"pinned" json:"pinned"`
}
