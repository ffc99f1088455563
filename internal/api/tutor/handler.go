package tutor

import (
	"encoding/json"
	"strings"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/core/session"
	"ai-book-tutor/internal/core/teaching"
	"ai-book-tutor/pkg/apperror"
	"ai-book-tutor/pkg/apperror/status"

	"github.com/gofiber/fiber/v3"
)

type turnRequest struct {
	SessionID string `json:"session_id"`
	StudentID string `json:"student_id"`
	Message   string `json:"message"`
}

type turnResponse struct {
	SessionID string               `json:"session_id"`
	Response  string               `json:"response"`
	Phase     teaching.Phase       `json:"phase"`
	State     session.StateSummary `json:"state_summary"`
}

// Handler serves teaching turns through the session manager.
type Handler struct {
	Manager *session.Manager
}

func (h *Handler) HandleTurn(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	var req turnRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apperror.BadRequest(config.ModuleTutor, c, status.InvalidRequestBody, err.Error())
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return apperror.BadRequest(config.ModuleTutor, c, status.MissingParams, "message is empty")
	}

	res, err := h.Manager.HandleTurn(c.Context(), req.SessionID, req.StudentID, req.Message)
	if err != nil {
		return apperror.InternalError(config.ModuleTutor, c, status.New(status.TutorTurnFailed, err))
	}

	return apperror.Success(config.ModuleTutor, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "turn ok",
		TrackingID: trackingID,
		Data: turnResponse{
			SessionID: res.SessionID,
			Response:  res.Response,
			Phase:     res.Phase,
			State:     res.Summary,
		},
	})
}
