package models

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionConcluded SessionStatus = "concluded"
)

const (
	SpeakerAI   = "ai"
	SpeakerUser = "user"
)

// MockInterviewSession is an embedded sub-document of PreparationPlan.
// Status only ever moves active -> concluded; sessions are appended and
// never removed individually (plan deletion cascades).
type MockInterviewSession struct {
	SessionID     string `bson:"session_id" json:"session_id"` // uuid v4
	InterviewType string `bson:"interview_type" json:"interview_type"`
	Difficulty    string `bson:"difficulty" json:"difficulty"`
	ResumeRef     string `bson:"resume_ref,omitempty" json:"resume_ref,omitempty"`

	StartedAt  time.Time         `bson:"started_at" json:"started_at"`
	Transcript []TranscriptEntry `bson:"transcript" json:"transcript"`

	Feedback        *FeedbackReport `bson:"feedback,omitempty" json:"feedback,omitempty"`
	OverallScore    float64         `bson:"overall_score" json:"overall_score"`
	DurationSeconds int64           `bson:"duration_seconds" json:"duration_seconds"`
	Status          SessionStatus   `bson:"status" json:"status"`
}

// TranscriptEntry timestamps are non-decreasing within a session; the
// client is the scribe of record while the session is active.
type TranscriptEntry struct {
	Speaker   string    `bson:"speaker" json:"speaker"` // ai|user
	Content   string    `bson:"content" json:"content"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

type FeedbackReport struct {
	OverallScore  float64          `bson:"overall_score" json:"overall_score"`
	Summary       string           `bson:"summary,omitempty" json:"summary,omitempty"`
	ContentScores []DimensionScore `bson:"content_scores" json:"content_scores"`
	Communication CommMetrics      `bson:"communication" json:"communication"`
	Exemplars     []ExemplarAnswer `bson:"exemplars,omitempty" json:"exemplars,omitempty"`
	Strengths     []string         `bson:"strengths,omitempty" json:"strengths,omitempty"`
	Improvements  []string         `bson:"improvements,omitempty" json:"improvements,omitempty"`
}

type DimensionScore struct {
	Dimension string  `bson:"dimension" json:"dimension"`
	Score     float64 `bson:"score" json:"score"`
	Rationale string  `bson:"rationale,omitempty" json:"rationale,omitempty"`
}

type CommMetrics struct {
	Clarity      float64 `bson:"clarity" json:"clarity"`
	Conciseness  float64 `bson:"conciseness" json:"conciseness"`
	Confidence   float64 `bson:"confidence" json:"confidence"`
	FillerRemark string  `bson:"filler_remark,omitempty" json:"filler_remark,omitempty"`
}

type ExemplarAnswer struct {
	Question string `bson:"question" json:"question"`
	Answer   string `bson:"answer" json:"answer"`
}
