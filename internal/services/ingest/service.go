package ingest

import (
	"context"
	"errors"
	"time"

	"ai-book-tutor/config"
	coreingest "ai-book-tutor/internal/core/ingest"
	"ai-book-tutor/internal/database"
	"ai-book-tutor/pkg/logger"

	"gorm.io/gorm"
)

// RunIngestion orchestrates the ingestion pipeline for a registered document:
// fetch, extract, chunk, embed, index, persist.
func RunIngestion(docID int64, force bool) {
	db, err := database.GetDB()
	if err != nil {
		logger.Error(err, "%v: db unavailable", config.ModuleIngest)
		return
	}

	doc, err := GetDocumentByID(db, docID)
	if err != nil {
		logger.Error(err, "%v: get document failed", config.ModuleIngest)
		return
	}
	if doc == nil || doc.FilePath == nil {
		logger.Error(errors.New("not found"), "%v: document not found", config.ModuleIngest)
		return
	}
	logger.WithFields(map[string]interface{}{
		"doc_id":    docID,
		"file_path": *doc.FilePath,
	}).Info("ingest: start")

	// Idempotency
	exists, err := HasChunks(db, docID)
	if err != nil {
		logger.Error(err, "%v: check chunks failed", config.ModuleIngest)
		return
	}
	if exists && !force {
		logger.Info("%v: chunks already exist; skip (no force)", config.ModuleIngest)
		return
	}
	if exists && force {
		if err := DeleteChunksByDocID(db, docID); err != nil {
			logger.Error(err, "%v: cleanup chunks failed", config.ModuleIngest)
			return
		}
		// Milvus rows with the same stable IDs are replaced on upsert.
	}

	_ = UpdateDocumentStatus(db, docID, "processing")

	tmpPath, cleanup, err := coreingest.FetchToLocalTemp(*doc.FilePath)
	if err != nil {
		logger.Error(err, "%v: fetch file failed", config.ModuleIngest)
		_ = UpdateDocumentStatus(db, docID, "failed")
		return
	}
	defer cleanup()

	sections, err := coreingest.ExtractSections(tmpPath)
	if err != nil {
		logger.Error(err, "%v: extract failed", config.ModuleIngest)
		_ = UpdateDocumentStatus(db, docID, "failed")
		return
	}
	logger.WithFields(map[string]interface{}{
		"doc_id":   docID,
		"sections": len(sections),
	}).Info("ingest: extracted sections")

	// Structural position comes from the document record when set, otherwise
	// from the source path.
	chapterID, lessonID := doc.ChapterID, doc.LessonID
	if chapterID == "" {
		chapterID, lessonID = coreingest.ParseSourcePath(*doc.FilePath)
	}

	targetTokens := config.Cfg.Ingest.ChunkTokens
	overlap := config.Cfg.Ingest.ChunkOverlap
	chunks := BuildChunks(*doc.FilePath, chapterID, lessonID, sections, targetTokens, overlap)
	if len(chunks) == 0 {
		logger.Error(errors.New("no chunks"), "%v: nothing to index", config.ModuleIngest)
		_ = UpdateDocumentStatus(db, docID, "failed")
		return
	}
	logger.WithFields(map[string]interface{}{
		"doc_id":       docID,
		"chunks":       len(chunks),
		"chunk_tokens": targetTokens,
		"overlap":      overlap,
	}).Info("ingest: chunks built")

	inputs := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		inputs = append(inputs, ch.Text)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	vectors, err := coreingest.EmbedOpenAI(ctx, inputs)
	if err != nil {
		logger.Error(err, "%v: embedding failed", config.ModuleIngest)
		_ = UpdateDocumentStatus(db, docID, "failed")
		return
	}
	if len(vectors) != len(chunks) {
		logger.Error(errors.New("mismatch"), "%v: embedding count mismatch", config.ModuleIngest)
		_ = UpdateDocumentStatus(db, docID, "failed")
		return
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	collection, err := coreingest.UpsertMilvusVectors(ctx, chunks)
	if err != nil {
		logger.Error(err, "%v: milvus upsert failed", config.ModuleIngest)
		_ = UpdateDocumentStatus(db, docID, "failed")
		return
	}

	// Chunk rows and the status flip land together or not at all.
	err = database.WithTx(ctx, func(tx *gorm.DB) error {
		if err := InsertChunks(tx, docID, chunks, collection); err != nil {
			return err
		}
		return UpdateDocumentStatus(tx, docID, "ready")
	})
	if err != nil {
		logger.Error(err, "%v: db insert chunks failed", config.ModuleIngest)
		_ = UpdateDocumentStatus(db, docID, "failed")
		return
	}
	logger.WithFields(map[string]interface{}{
		"doc_id": docID,
		"chunks": len(chunks),
	}).Info("ingest: ready")
}
