package retriever

import (
	"context"
	"math"

	"ai-book-tutor/internal/core/content"
)

// MemoryIndex is an in-process index that scores chunks by cosine similarity
// directly against the chunk store. It serves local deployments and tests;
// production uses the Milvus index.
type MemoryIndex struct {
	store *content.Store
}

// NewMemoryIndex builds an index over the given store snapshot.
func NewMemoryIndex(store *content.Store) *MemoryIndex {
	return &MemoryIndex{store: store}
}

// Search scans the filtered subset in insertion order, which keeps equal
// scores deterministically ordered.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, topK int, f Filters) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var chunks []content.Chunk
	switch {
	case f.ChapterID != "" && f.LessonID != "":
		chunks = m.store.Lesson(f.ChapterID, f.LessonID)
	case f.ChapterID != "":
		chunks = m.store.Chapter(f.ChapterID)
	default:
		chunks = m.store.All()
	}

	hits := make([]Hit, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Embedding) != len(vector) {
			continue
		}
		hits = append(hits, Hit{
			ChunkID:     ch.ID,
			Score:       cosine(vector, ch.Embedding),
			ChapterID:   ch.ChapterID,
			LessonID:    ch.LessonID,
			HeadingPath: ch.HeadingPath,
			Content:     ch.Text,
		})
	}
	return hits, nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
