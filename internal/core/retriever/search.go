package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-book-tutor/config"
	"ai-book-tutor/pkg/logger"

	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusIndex runs vector search against the Milvus collection written by the
// ingestion pass.
type MilvusIndex struct {
	Address    string
	Collection string
}

// NewMilvusIndex builds an index from the loaded configuration.
func NewMilvusIndex() *MilvusIndex {
	return &MilvusIndex{
		Address:    config.Cfg.Milvus.Address,
		Collection: config.Cfg.Milvus.Collection,
	}
}

// Search performs a vector similarity search and returns hits with structural
// metadata. The caller sorts and truncates.
func (m *MilvusIndex) Search(ctx context.Context, vector []float32, topK int, filters Filters) ([]Hit, error) {
	if topK <= 0 {
		topK = 8
	}
	if len(vector) == 0 {
		return []Hit{}, nil
	}
	// Guard the search by a short timeout to keep latency bounds tight.
	timeout := time.Duration(config.Cfg.Retriever.SearchTimeoutMs) * time.Millisecond
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cli, err := milvusclient.NewClient(ctx, milvusclient.Config{Address: m.Address})
	if err != nil {
		return nil, err
	}
	defer cli.Close()

	collection := m.Collection
	if collection == "" {
		collection = "book_chunks"
	}

	// Ensure collection exists then load
	exists, err := cli.HasCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("collection %q not found", collection)
	}
	if err := cli.LoadCollection(ctx, collection, false); err != nil {
		return nil, err
	}

	metricType := milvusentity.MetricType(config.Cfg.Milvus.IndexHNSWConfig.MetricType)
	// Favor low latency locally; tune within 64–128 range
	ef := 64
	searchParam, err := milvusentity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		return nil, err
	}

	expr := buildExpr(filters)
	outputFields := []string{"id", "chapter_id", "lesson_id", "heading_path", "content"}
	var vectors []milvusentity.Vector
	vectors = append(vectors, milvusentity.FloatVector(vector))

	start := time.Now()
	results, err := cli.Search(
		ctx,
		collection,
		nil, // partitions
		expr,
		outputFields,
		vectors,
		"embedding",
		metricType,
		topK,
		searchParam,
	)
	elapsed := time.Since(start)

	if err != nil {
		logger.Error(err, "%v: milvus search failed", config.ModuleMilvus)
		return nil, err
	}
	logger.Info("%v: milvus search done in %dms", config.ModuleMilvus, elapsed.Milliseconds())

	if len(results) == 0 {
		return []Hit{}, nil
	}
	it := results[0]

	hits := make([]Hit, 0, it.ResultCount)
	for i := 0; i < it.ResultCount; i++ {
		var h Hit
		if ids, ok := it.IDs.(*milvusentity.ColumnVarChar); ok {
			h.ChunkID = ids.Data()[i]
		}
		h.Score = float32(it.Scores[i])

		for _, field := range it.Fields {
			col, ok := field.(*milvusentity.ColumnVarChar)
			if !ok {
				continue
			}
			switch col.Name() {
			case "chapter_id":
				h.ChapterID = col.Data()[i]
			case "lesson_id":
				h.LessonID = col.Data()[i]
			case "heading_path":
				if raw := col.Data()[i]; raw != "" {
					h.HeadingPath = strings.Split(raw, " › ")
				}
			case "content":
				h.Content = col.Data()[i]
			}
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func buildExpr(f Filters) string {
	var parts []string
	if f.ChapterID != "" {
		parts = append(parts, fmt.Sprintf("chapter_id == %q", f.ChapterID))
	}
	if f.LessonID != "" {
		parts = append(parts, fmt.Sprintf("lesson_id == %q", f.LessonID))
	}
	return strings.Join(parts, " && ")
}
