package ingest

import (
	"strconv"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/database"
	"ai-book-tutor/internal/database/model"
	"ai-book-tutor/internal/services/ingest"
	"ai-book-tutor/pkg/apperror"
	"ai-book-tutor/pkg/apperror/status"

	"github.com/gofiber/fiber/v3"
)

type ingestResponse struct {
	DocID int64 `json:"doc_id"`
}

func HandleIngest(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	docIDStr := c.Params("docID")
	if docIDStr == "" {
		return apperror.BadRequest(config.ModuleIngest, c, status.MissingParams, "docID is required")
	}
	docID, err := strconv.ParseInt(docIDStr, 10, 64)
	if err != nil {
		return apperror.BadRequest(config.ModuleIngest, c, status.MissingParams, "invalid docID")
	}

	if _, err := database.GetEntityByID[model.Document](c.Context(), docID); err != nil {
		return apperror.BadRequest(config.ModuleIngest, c, status.DocumentNotFound, "document not found")
	}

	q := c.Query("force")
	force := q == "1" || q == "true" || q == "yes"

	// Fire and forget; status is tracked on the document row.
	go ingest.RunIngestion(docID, force)

	return apperror.Success(config.ModuleIngest, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "ingest started",
		TrackingID: trackingID,
		Data:       ingestResponse{DocID: docID},
	})
}
