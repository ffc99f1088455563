package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ai-book-tutor/config"
	coreingest "ai-book-tutor/internal/core/ingest"
	"ai-book-tutor/internal/database"
	"ai-book-tutor/internal/database/model"
	"ai-book-tutor/pkg/apperror"
	"ai-book-tutor/pkg/apperror/status"
	s3client "ai-book-tutor/pkg/s3"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v3"
)

type uploadResponse struct {
	DocID     int64  `json:"doc_id"`
	ChapterID string `json:"chapter_id"`
	LessonID  string `json:"lesson_id"`
}

var contentTypes = map[string]string{
	".pdf":      "application/pdf",
	".md":       "text/markdown",
	".markdown": "text/markdown",
}

func HandleUpload(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	fh, err := c.FormFile("file")
	if err != nil {
		return apperror.BadRequest(config.ModuleUpload, c, status.MissingParams, "file is required")
	}
	if fh == nil || fh.Size == 0 {
		return apperror.BadRequest(config.ModuleUpload, c, status.MissingParams, "empty file")
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if _, ok := contentTypes[ext]; !ok {
		return apperror.BadRequest(config.ModuleUpload, c, status.InvalidRequestBody, "only .pdf and .md files are accepted")
	}
	sourceType := "markdown"
	if ext == ".pdf" {
		sourceType = "pdf"
	}

	// Structural position comes from explicit form fields, falling back to the
	// chapter_NN/lesson_NN convention in the filename.
	chapterID := strings.TrimSpace(c.FormValue("chapter_id"))
	lessonID := strings.TrimSpace(c.FormValue("lesson_id"))
	if chapterID == "" {
		chapterID, lessonID = coreingest.ParseSourcePath(fh.Filename)
	}

	file, err := fh.Open()
	if err != nil {
		return apperror.BadRequest(config.ModuleUpload, c, status.InvalidRequestBody, "cannot open file")
	}
	defer file.Close()

	hasher := sha256.New()
	tee := io.TeeReader(file, hasher)

	var storedPath string
	if strings.TrimSpace(config.Cfg.S3.Bucket) != "" {
		storedPath, err = storeToS3(tee, hasher, ext)
	} else {
		storedPath, err = storeToLocal(tee, hasher, ext)
	}
	if err != nil {
		return apperror.InternalError(config.ModuleUpload, c, status.New(status.UploadInternal, err))
	}

	doc := model.Document{
		FilePath:   &storedPath,
		SourceType: sourceType,
		ChapterID:  chapterID,
		LessonID:   lessonID,
		Status:     "uploaded",
	}
	if err := database.CreateEntity(c.Context(), &doc); err != nil {
		return apperror.InternalError(config.ModuleUpload, c, status.New(status.UploadInternal, err))
	}

	return apperror.Success(config.ModuleUpload, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "File uploaded successfully",
		TrackingID: trackingID,
		Data: uploadResponse{
			DocID:     doc.ID,
			ChapterID: chapterID,
			LessonID:  lessonID,
		},
	})
}

func storeToLocal(r io.Reader, hasher interface {
	io.Writer
	Sum([]byte) []byte
}, ext string) (string, error) {
	baseDir := filepath.Join("storage", "documents")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(baseDir, "upload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
	}()

	mw := io.MultiWriter(tmpFile, hasher)
	if _, err := io.Copy(mw, r); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	// Content-addressed name keeps re-uploads of the same file idempotent.
	shaHex := hex.EncodeToString(hasher.Sum(nil))
	finalPath := filepath.Join(baseDir, shaHex+ext)
	if err := os.Rename(tmpFile.Name(), finalPath); err != nil {
		return "", fmt.Errorf("failed to finalize file: %w", err)
	}
	return finalPath, nil
}

func storeToS3(r io.Reader, hasher interface {
	io.Writer
	Sum([]byte) []byte
}, ext string) (string, error) {
	client, err := s3client.GetClient()
	if err != nil {
		return "", fmt.Errorf("s3 client: %w", err)
	}

	ctx := context.Background()
	bucket := config.Cfg.S3.Bucket
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		_, crtErr := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
		if crtErr != nil {
			var owned *s3types.BucketAlreadyOwnedByYou
			if !errors.As(crtErr, &owned) {
				return "", fmt.Errorf("create bucket: %w", crtErr)
			}
		}
	}

	// The body is needed twice (hash + upload), so buffer it to a temp file.
	tmp, err := os.CreateTemp("", "s3-upload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("tempfile: %w", err)
	}
	defer func() {
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	mw := io.MultiWriter(tmp, hasher)
	if _, err := io.Copy(mw, r); err != nil {
		return "", fmt.Errorf("stream copy: %w", err)
	}

	shaHex := hex.EncodeToString(hasher.Sum(nil))
	key := fmt.Sprintf("documents/%s%s", shaHex, ext)

	if _, err := tmp.Seek(0, 0); err != nil {
		return "", fmt.Errorf("seek: %w", err)
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        tmp,
		ContentType: aws.String(contentTypes[ext]),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}
