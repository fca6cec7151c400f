package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// TranscriptArchive mirrors a concluded session's transcript into Postgres
// for analytics and search. Written best-effort after conclude; the Mongo
// sub-document stays the source of truth.
type TranscriptArchive struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	PlanID    string `gorm:"column:plan_id;type:uuid;index" json:"plan_id"`
	SessionID string `gorm:"column:session_id;type:uuid;index" json:"session_id"`

	Seq     int    `gorm:"column:seq;type:integer" json:"seq"`
	Speaker string `gorm:"column:speaker;type:text" json:"speaker"` // "ai" | "user"
	Content string `gorm:"column:content;type:text" json:"content"`

	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"embedding"`

	SpokenAt time.Time      `gorm:"column:spoken_at;type:timestamptz;index" json:"spoken_at"`
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
}

func (TranscriptArchive) TableName() string { return "transcript_archive" }

// FeedbackRecord is the flat analytics row for one concluded session.
type FeedbackRecord struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	PlanID    string `gorm:"column:plan_id;type:uuid;index" json:"plan_id"`
	SessionID string `gorm:"column:session_id;type:uuid;uniqueIndex" json:"session_id"`

	InterviewType   string  `gorm:"column:interview_type;type:text" json:"interview_type"`
	OverallScore    float64 `gorm:"column:overall_score;type:double precision" json:"overall_score"`
	DurationSeconds int64   `gorm:"column:duration_seconds;type:bigint" json:"duration_seconds"`

	Strengths    pq.StringArray `gorm:"column:strengths;type:text[]" json:"strengths"`
	Improvements pq.StringArray `gorm:"column:improvements;type:text[]" json:"improvements"`

	Report datatypes.JSON `gorm:"column:report;type:jsonb" json:"report"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (FeedbackRecord) TableName() string { return "feedback_records" }
