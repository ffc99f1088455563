package ingest

import (
	"context"
	"strings"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/core/content"
	"ai-book-tutor/pkg/logger"

	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const milvusVectorDim = 1536

// UpsertMilvusVectors ensures the collection exists, deletes any rows with the
// same stable IDs and inserts the embedded chunks. Returns the collection name.
func UpsertMilvusVectors(ctx context.Context, chunks []content.Chunk) (string, error) {
	cli, err := milvusclient.NewClient(ctx, milvusclient.Config{Address: config.Cfg.Milvus.Address})
	if err != nil {
		return "", err
	}
	defer cli.Close()

	collection := config.Cfg.Milvus.Collection
	if collection == "" {
		collection = "book_chunks"
	}
	exists, err := cli.HasCollection(ctx, collection)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := createChunksCollection(ctx, cli, collection); err != nil {
			return "", err
		}
	}

	// Stable IDs let re-ingestion replace rows instead of duplicating them.
	ids := make([]string, len(chunks))
	chapterIDs := make([]string, len(chunks))
	lessonIDs := make([]string, len(chunks))
	headingPaths := make([]string, len(chunks))
	contents := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
		chapterIDs[i] = ch.ChapterID
		lessonIDs[i] = ch.LessonID
		headingPaths[i] = strings.Join(ch.HeadingPath, " › ")
		contents[i] = ch.Text
		vectors[i] = ch.Embedding
	}

	if len(ids) > 0 {
		expr := "id in [\"" + strings.Join(ids, "\",\"") + "\"]"
		if err := cli.Delete(ctx, collection, "", expr); err != nil {
			logger.Warn("%v: pre-insert delete failed: %v", config.ModuleMilvus, err)
		}
	}

	colID := milvusentity.NewColumnVarChar("id", ids)
	colChapter := milvusentity.NewColumnVarChar("chapter_id", chapterIDs)
	colLesson := milvusentity.NewColumnVarChar("lesson_id", lessonIDs)
	colHeading := milvusentity.NewColumnVarChar("heading_path", headingPaths)
	colContent := milvusentity.NewColumnVarChar("content", contents)
	colVec := milvusentity.NewColumnFloatVector("embedding", milvusVectorDim, vectors)

	if _, err := cli.Insert(ctx, collection, "", colID, colChapter, colLesson, colHeading, colContent, colVec); err != nil {
		return "", err
	}
	if err := cli.Flush(ctx, collection, false); err != nil {
		return "", err
	}
	return collection, nil
}

// DeleteMilvusVectors removes rows by chunk ID. Missing collections and empty
// ID sets are no-ops.
func DeleteMilvusVectors(ctx context.Context, collection string, ids []string) error {
	if collection == "" || len(ids) == 0 {
		return nil
	}
	cli, err := milvusclient.NewClient(ctx, milvusclient.Config{Address: config.Cfg.Milvus.Address})
	if err != nil {
		return err
	}
	defer cli.Close()

	exists, err := cli.HasCollection(ctx, collection)
	if err != nil || !exists {
		return err
	}
	expr := "id in [\"" + strings.Join(ids, "\",\"") + "\"]"
	return cli.Delete(ctx, collection, "", expr)
}

func createChunksCollection(ctx context.Context, cli milvusclient.Client, collection string) error {
	schema := milvusentity.NewSchema().WithName(collection).WithDescription("curriculum chunks")
	schema.WithField(milvusentity.NewField().WithName("id").WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true))
	schema.WithField(milvusentity.NewField().WithName("chapter_id").WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(32))
	schema.WithField(milvusentity.NewField().WithName("lesson_id").WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(32))
	schema.WithField(milvusentity.NewField().WithName("heading_path").WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(1024))
	schema.WithField(milvusentity.NewField().WithName("content").WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(8192))
	schema.WithField(milvusentity.NewField().WithName("embedding").WithDataType(milvusentity.FieldTypeFloatVector).WithDim(milvusVectorDim))

	if err := cli.CreateCollection(ctx, schema, 2); err != nil {
		return err
	}

	hnsw := config.Cfg.Milvus.IndexHNSWConfig
	metric := milvusentity.MetricType(hnsw.MetricType)
	if metric == "" {
		metric = milvusentity.COSINE
	}
	idx, err := milvusentity.NewIndexHNSW(metric, hnsw.M, hnsw.EfConstruction)
	if err != nil {
		return err
	}
	return cli.CreateIndex(ctx, collection, "embedding", idx, false)
}
