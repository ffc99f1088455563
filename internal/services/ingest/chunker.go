package ingest

import (
	"strings"

	"ai-book-tutor/internal/core/content"
	coreingest "ai-book-tutor/internal/core/ingest"
)

// BuildChunks converts extracted sections into indexable chunks. Sections that
// fit the target size become one chunk; longer bodies are split into rune
// windows with overlap so a sentence cut at a boundary still appears whole in
// one of the neighbours. Chunk IDs are stable across re-ingestion of unchanged
// text.
func BuildChunks(sourcePath, chapterID, lessonID string, sections []coreingest.Section, targetTokens, overlapTokens int) []content.Chunk {
	if targetTokens <= 0 {
		targetTokens = 600
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	// Token approximation: ~4 chars per token.
	targetChars := targetTokens * 4
	overlapChars := overlapTokens * 4

	chunks := make([]content.Chunk, 0, 128)
	ordinal := 0
	for _, sec := range sections {
		text := strings.TrimSpace(sec.Body)
		if text == "" {
			continue
		}
		runes := []rune(text)
		for start := 0; start < len(runes); {
			end := start + targetChars
			if end > len(runes) {
				end = len(runes)
			}
			piece := string(runes[start:end])
			chunks = append(chunks, content.Chunk{
				ID:          content.ChunkID(sourcePath, ordinal, piece),
				Text:        piece,
				ChapterID:   chapterID,
				LessonID:    lessonID,
				HeadingPath: append([]string(nil), sec.HeadingPath...),
				TokenLen:    content.ApproxTokens(piece),
			})
			ordinal++
			if end == len(runes) {
				break
			}
			next := end - overlapChars
			if next <= start {
				next = end
			}
			start = next
		}
	}
	return chunks
}
