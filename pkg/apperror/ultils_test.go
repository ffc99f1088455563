package apperror

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"ai-book-tutor/config"
	"ai-book-tutor/pkg/apperror/status"

	"github.com/gofiber/fiber/v3"
)

func doInternalError(t *testing.T, err error) ErrorResponse {
	t.Helper()
	app := fiber.New()
	app.Get("/boom", func(c fiber.Ctx) error {
		return InternalError(config.ModuleTutor, c, err)
	})

	resp, terr := app.Test(httptest.NewRequest("GET", "/boom", nil))
	if terr != nil {
		t.Fatal(terr)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	body, rerr := io.ReadAll(resp.Body)
	if rerr != nil {
		t.Fatal(rerr)
	}
	var payload ErrorResponse
	if uerr := json.Unmarshal(body, &payload); uerr != nil {
		t.Fatalf("unmarshal %q: %v", body, uerr)
	}
	return payload
}

func TestInternalError_SurfacesCodedError(t *testing.T) {
	err := status.New(status.TutorTurnFailed, errors.New("pipeline broke"))
	payload := doInternalError(t, err)
	if payload.ErrorCode != "AI-2000" {
		t.Fatalf("error_code = %s, want AI-2000", payload.ErrorCode)
	}
	if payload.Error != "pipeline broke" {
		t.Fatalf("error = %q, want underlying message", payload.Error)
	}
}

func TestInternalError_WrappedCodedErrorStillSurfaces(t *testing.T) {
	inner := status.New(status.UploadInternal, errors.New("disk full"))
	payload := doInternalError(t, errors.Join(errors.New("storing chunk"), inner))
	if payload.ErrorCode != "AI-1000" {
		t.Fatalf("error_code = %s, want AI-1000", payload.ErrorCode)
	}
}

func TestInternalError_PlainErrorFallsBack(t *testing.T) {
	payload := doInternalError(t, errors.New("no idea"))
	if payload.ErrorCode != "AI-9000" {
		t.Fatalf("error_code = %s, want AI-9000", payload.ErrorCode)
	}
}
