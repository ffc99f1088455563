package retriever

import (
	"errors"
	"time"
)

// ScopeLevel is the breadth of content a query is constrained to.
type ScopeLevel string

const (
	ScopeLesson  ScopeLevel = "lesson"
	ScopeChapter ScopeLevel = "chapter"
	ScopeBook    ScopeLevel = "book"
)

// Scope pairs a level with the identifiers needed to filter.
type Scope struct {
	Level     ScopeLevel
	ChapterID string
	LessonID  string
}

// BookScope is the widest scope.
func BookScope() Scope { return Scope{Level: ScopeBook} }

// Filters constrain an index search to a structural subset.
type Filters struct {
	ChapterID string
	LessonID  string
}

// Hit is a single search result with its structural metadata.
type Hit struct {
	ChunkID     string   `json:"chunk_id"`
	Score       float32  `json:"score"`
	ChapterID   string   `json:"chapter_id"`
	LessonID    string   `json:"lesson_id"`
	HeadingPath []string `json:"heading_path"`
	Content     string   `json:"content"`
}

// Result is the outcome of one retrieval call. ScopeUsed may be wider than
// the requested scope when fallback kicked in. A low top score flags the
// result low-confidence rather than suppressing it; the context assembler
// decides what to do with it.
type Result struct {
	Hits          []Hit         `json:"hits"`
	ScopeUsed     Scope         `json:"scope_used"`
	Fallback      bool          `json:"fallback"`
	LowConfidence bool          `json:"low_confidence"`
	Latency       time.Duration `json:"latency"`
}

// ErrRetrievalUnavailable signals a transient collaborator failure after the
// retry budget is spent. The teaching flow treats it as "proceed without
// grounding", never as a turn abort.
var ErrRetrievalUnavailable = errors.New("retriever: retrieval unavailable")

// ErrEmptyQuery rejects queries that are empty after trimming.
var ErrEmptyQuery = errors.New("retriever: query is empty")
