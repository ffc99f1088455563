package upload

import (
	"strconv"

	"ai-book-tutor/config"
	coreingest "ai-book-tutor/internal/core/ingest"
	"ai-book-tutor/internal/database"
	"ai-book-tutor/internal/database/model"
	"ai-book-tutor/pkg/apperror"
	"ai-book-tutor/pkg/apperror/status"
	"ai-book-tutor/pkg/logger"

	"github.com/gofiber/fiber/v3"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// HandleDeleteDocument removes a document and its chunks. Vector rows are
// cleaned up best-effort; the relational rows are the source of truth and the
// serving snapshot only changes on restart.
func HandleDeleteDocument(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	docID, err := strconv.ParseInt(c.Params("docID"), 10, 64)
	if err != nil {
		return apperror.BadRequest(config.ModuleUpload, c, status.MissingParams, "invalid docID")
	}
	if _, err := database.GetEntityByID[model.Document](c.Context(), docID); err != nil {
		return apperror.BadRequest(config.ModuleUpload, c, status.DocumentNotFound, "document not found")
	}

	db, err := database.GetDB()
	if err != nil {
		return apperror.InternalError(config.ModuleUpload, c, err)
	}
	var chunks []model.Chunk
	if err := db.Select("chunk_id", "milvus_collection").Where("document_id = ?", docID).Find(&chunks).Error; err != nil {
		return apperror.InternalError(config.ModuleUpload, c, err)
	}

	if len(chunks) > 0 {
		ids := lo.Map(chunks, func(ch model.Chunk, _ int) string { return ch.ChunkID })
		if err := coreingest.DeleteMilvusVectors(c.Context(), chunks[0].MilvusCollection, ids); err != nil {
			logger.Error(err, "%v: milvus cleanup failed for doc %d", config.ModuleUpload, docID)
		}
	}

	err = database.WithTx(c.Context(), func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Document{}, docID).Error
	})
	if err != nil {
		return apperror.InternalError(config.ModuleUpload, c, err)
	}

	return apperror.Success(config.ModuleUpload, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "document deleted",
		TrackingID: trackingID,
		Data:       fiber.Map{"doc_id": docID},
	})
}
