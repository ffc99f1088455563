package content

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Chunk is an immutable unit of curriculum content. Chunks are created during
// ingestion and replaced wholesale when the source changes; they are never
// mutated in place.
type Chunk struct {
	ID          string
	Text        string
	Embedding   []float32
	ChapterID   string
	LessonID    string
	HeadingPath []string
	TokenLen    int
}

// ContentHash returns the hex sha256 of the chunk text.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ChunkID derives a stable identifier from the source path, the chunk ordinal
// within that source and the content hash. Re-ingesting unchanged source text
// yields the same ID, which keeps incremental re-indexing cheap.
func ChunkID(sourcePath string, ordinal int, text string) string {
	seed := fmt.Sprintf("%s|%d|%s", sourcePath, ordinal, ContentHash(text))
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:16])
}

// Citation renders the structural position of the chunk for attribution,
// e.g. "Chapter 04-python › Lesson 01-intro › Async Basics".
func (c Chunk) Citation() string {
	parts := []string{"Chapter " + c.ChapterID}
	if c.LessonID != "" {
		parts = append(parts, "Lesson "+c.LessonID)
	}
	if len(c.HeadingPath) > 0 {
		parts = append(parts, strings.Join(c.HeadingPath, " › "))
	}
	return strings.Join(parts, " › ")
}

// ApproxTokens estimates token length at ~4 characters per token.
func ApproxTokens(text string) int {
	n := len([]rune(text)) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}
