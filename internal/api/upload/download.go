package upload

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/database"
	"ai-book-tutor/internal/database/model"
	"ai-book-tutor/pkg/apperror"
	"ai-book-tutor/pkg/apperror/status"
	s3client "ai-book-tutor/pkg/s3"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v3"
)

type downloadURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

const presignTTL = 15 * time.Minute

// HandleDownloadURL returns a short-lived link to a stored document. Local
// storage returns the stored path as-is.
func HandleDownloadURL(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	docID, err := strconv.ParseInt(c.Params("docID"), 10, 64)
	if err != nil {
		return apperror.BadRequest(config.ModuleUpload, c, status.MissingParams, "invalid docID")
	}
	doc, err := database.GetEntityByID[model.Document](c.Context(), docID)
	if err != nil {
		return apperror.BadRequest(config.ModuleUpload, c, status.DocumentNotFound, "document not found")
	}
	if doc.FilePath == nil {
		return apperror.BadRequest(config.ModuleUpload, c, status.DocumentNotFound, "document has no stored file")
	}

	if !strings.HasPrefix(*doc.FilePath, "s3://") {
		return apperror.Success(config.ModuleUpload, c, apperror.FiberSuccessMessage{
			Code:       status.OK,
			Message:    "download url",
			TrackingID: trackingID,
			Data:       downloadURLResponse{URL: *doc.FilePath},
		})
	}

	u, err := url.Parse(*doc.FilePath)
	if err != nil {
		return apperror.InternalError(config.ModuleUpload, c, err)
	}
	presigner, err := s3client.GetPresignClient()
	if err != nil {
		return apperror.InternalError(config.ModuleUpload, c, err)
	}
	out, err := presigner.PresignGetObject(c.Context(), &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return apperror.InternalError(config.ModuleUpload, c, err)
	}

	return apperror.Success(config.ModuleUpload, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "download url",
		TrackingID: trackingID,
		Data: downloadURLResponse{
			URL:       out.URL,
			ExpiresIn: int(presignTTL.Seconds()),
		},
	})
}
