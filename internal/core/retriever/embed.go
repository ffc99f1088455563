package retriever

import (
	"context"
	"errors"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/core/ingest"
	"ai-book-tutor/pkg/logger"
)

// OpenAIEmbedder embeds queries in the same vector space the ingestion pass
// used, via the shared ingest embedding client.
type OpenAIEmbedder struct{}

// Embed embeds a single query string and returns its vector.
func (OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("text is empty")
	}
	vecs, err := ingest.EmbedOpenAI(ctx, []string{text})
	if err != nil {
		logger.Error(err, "%v: embed query failed", config.ModuleRetriever)
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return vecs[0], nil
}
