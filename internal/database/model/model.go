package model

import "time"

// Document is a curriculum source file registered for ingestion.
// Status is one of: pending, processing, ready, failed.
type Document struct {
	ID         int64   `gorm:"primaryKey;autoIncrement"`
	FilePath   *string `gorm:"size:1024"`
	SourceType string  `gorm:"size:16"` // pdf | markdown
	ChapterID  string  `gorm:"size:32;index"`
	LessonID   string  `gorm:"size:32;index"`
	Status     string  `gorm:"size:16;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Chunk mirrors a vector-indexed content chunk for bookkeeping and for
// rebuilding the in-process store without re-embedding.
type Chunk struct {
	ID               int64   `gorm:"primaryKey;autoIncrement"`
	ChunkID          string  `gorm:"size:64;uniqueIndex"`
	DocumentID       int64   `gorm:"index"`
	ChapterID        string  `gorm:"size:32;index"`
	LessonID         string  `gorm:"size:32;index"`
	HeadingPath      string  `gorm:"size:1024"`
	Content          string  `gorm:"type:text"`
	ContentPreview   *string `gorm:"size:512"`
	TokenCount       int
	ContentHash      string `gorm:"size:64"`
	MilvusCollection string `gorm:"size:128"`
	Embedding        []byte `gorm:"type:json"` // JSON-encoded []float32; set for the memory backend
	CreatedAt        time.Time
}

// StudentProfile holds the serialized teaching state for one student. The
// state blob is replaced atomically at the end of each committed turn.
type StudentProfile struct {
	StudentID string `gorm:"primaryKey;size:64"`
	State     []byte `gorm:"type:json"`
	UpdatedAt time.Time
}

// Message is one conversation turn, student or tutor side.
type Message struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	StudentID string `gorm:"size:64;index"`
	Role      string `gorm:"size:16"` // student | tutor
	Content   string `gorm:"type:text"`
	Phase     string `gorm:"size:32"`
	CreatedAt time.Time
}
