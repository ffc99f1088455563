package ingest

import (
	"encoding/json"
	"strings"
	"unicode"

	"ai-book-tutor/internal/core/content"
	"ai-book-tutor/internal/database/model"

	"gorm.io/gorm"
)

func GetDocumentByID(db *gorm.DB, docID int64) (*model.Document, error) {
	var doc model.Document
	if err := db.First(&doc, docID).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func HasChunks(db *gorm.DB, docID int64) (bool, error) {
	var count int64
	if err := db.Model(&model.Chunk{}).Where("document_id = ?", docID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func DeleteChunksByDocID(db *gorm.DB, docID int64) error {
	return db.Where("document_id = ?", docID).Delete(&model.Chunk{}).Error
}

func UpdateDocumentStatus(db *gorm.DB, docID int64, status string) error {
	return db.Model(&model.Document{}).Where("id = ?", docID).Update("status", status).Error
}

// InsertChunks persists embedded chunks. Embeddings are stored as JSON so the
// in-process memory backend can rebuild its index without re-embedding.
func InsertChunks(db *gorm.DB, docID int64, chunks []content.Chunk, collection string) error {
	records := make([]model.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		preview := buildContentPreview(ch.Text, 512)
		embedding, err := json.Marshal(ch.Embedding)
		if err != nil {
			return err
		}
		records = append(records, model.Chunk{
			ChunkID:          ch.ID,
			DocumentID:       docID,
			ChapterID:        ch.ChapterID,
			LessonID:         ch.LessonID,
			HeadingPath:      strings.Join(ch.HeadingPath, " › "),
			Content:          ch.Text,
			ContentPreview:   &preview,
			TokenCount:       ch.TokenLen,
			ContentHash:      content.ContentHash(ch.Text),
			MilvusCollection: collection,
			Embedding:        embedding,
		})
	}
	return db.Create(&records).Error
}

// LoadChunks rebuilds the full chunk set from MySQL, embeddings included.
func LoadChunks(db *gorm.DB) ([]content.Chunk, error) {
	var records []model.Chunk
	if err := db.Order("id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	chunks := make([]content.Chunk, 0, len(records))
	for _, rec := range records {
		ch := content.Chunk{
			ID:        rec.ChunkID,
			Text:      rec.Content,
			ChapterID: rec.ChapterID,
			LessonID:  rec.LessonID,
			TokenLen:  rec.TokenCount,
		}
		if rec.HeadingPath != "" {
			ch.HeadingPath = strings.Split(rec.HeadingPath, " › ")
		}
		if len(rec.Embedding) > 0 {
			if err := json.Unmarshal(rec.Embedding, &ch.Embedding); err != nil {
				return nil, err
			}
		}
		chunks = append(chunks, ch)
	}
	return chunks, nil
}

// buildContentPreview sanitizes the preview to valid UTF-8 printable characters
// and truncates by runes to avoid splitting multi-byte sequences.
func buildContentPreview(s string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(s))
	count := 0
	for _, r := range s {
		if r == '\uFEFF' { // BOM
			continue
		}
		if r == '\n' || r == '\t' || r == '\r' {
			// keep common whitespace
		} else if !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
		count++
		if count >= maxRunes {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
