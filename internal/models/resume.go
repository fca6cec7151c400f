package models

import "time"

// ResumeFile lives in Postgres: hot session state stays in Mongo, file
// metadata and extracted text are relational.
type ResumeFile struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	PlanID string `gorm:"column:plan_id;type:uuid;index" json:"plan_id"`

	FileName string `gorm:"column:file_name;type:text" json:"file_name"`
	FilePath string `gorm:"column:file_path;type:text" json:"file_path"`
	FileSize int    `gorm:"column:file_size;type:integer" json:"file_size"`
	MimeType string `gorm:"column:mime_type;type:text" json:"mime_type"`

	ExtractedText string `gorm:"column:extracted_text;type:text" json:"extracted_text"`

	UploadAt time.Time `gorm:"column:upload_at;type:timestamptz" json:"upload_at"`
}

func (ResumeFile) TableName() string { return "resume_files" }
