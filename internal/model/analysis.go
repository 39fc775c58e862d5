package model

import "time"

// AnalysisRecord is one completed photo analysis kept for the history view.
type AnalysisRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SessionID      string    `gorm:"size:36;not null;index" json:"session_id"`
	Filename       string    `gorm:"size:255;not null" json:"filename"`
	MIMEType       string    `gorm:"size:64;not null" json:"mime_type"`
	SizeBytes      int       `gorm:"not null" json:"size_bytes"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	Model          string    `gorm:"size:64;not null" json:"model"`
	Method         string    `gorm:"size:16;not null" json:"method"`
	DurationMS     int64     `json:"duration_ms"`
	MarkdownLength int       `json:"markdown_length"`
	ObjectKey      string    `gorm:"size:255" json:"object_key,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}
