package retriever

import (
	"strconv"
	"strings"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/core/retriever"
	"ai-book-tutor/pkg/apperror"
	"ai-book-tutor/pkg/apperror/status"

	"github.com/gofiber/fiber/v3"
)

type searchResponse struct {
	Hits          []retriever.Hit `json:"hits"`
	ScopeUsed     string          `json:"scope_used"`
	Chapter       string          `json:"chapter,omitempty"`
	Lesson        string          `json:"lesson,omitempty"`
	Fallback      bool            `json:"fallback"`
	LowConfidence bool            `json:"low_confidence"`
	LatencyMs     int64           `json:"latency_ms"`
}

// Handler exposes the retrieval engine for debugging and curriculum tooling.
// The teaching loop calls the engine directly; this endpoint is read-only.
type Handler struct {
	Engine *retriever.Engine
}

func (h *Handler) HandleSearch(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return apperror.BadRequest(config.ModuleRetriever, c, status.MissingParams, "q is required")
	}

	scope := retriever.BookScope()
	switch retriever.ScopeLevel(c.Query("scope", string(retriever.ScopeBook))) {
	case retriever.ScopeLesson:
		scope = retriever.Scope{
			Level:     retriever.ScopeLesson,
			ChapterID: c.Query("chapter"),
			LessonID:  c.Query("lesson"),
		}
	case retriever.ScopeChapter:
		scope = retriever.Scope{
			Level:     retriever.ScopeChapter,
			ChapterID: c.Query("chapter"),
		}
	case retriever.ScopeBook:
	default:
		return apperror.BadRequest(config.ModuleRetriever, c, status.MissingParams, "scope must be lesson, chapter or book")
	}

	topK := config.Cfg.Retriever.TopKDefault
	if s := c.Query("top_k"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			topK = v
		}
	}

	res, err := h.Engine.Search(c.Context(), q, scope, topK)
	if err != nil {
		return apperror.InternalError(config.ModuleRetriever, c, err)
	}

	return apperror.Success(config.ModuleRetriever, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "search ok",
		TrackingID: trackingID,
		Data: searchResponse{
			Hits:          res.Hits,
			ScopeUsed:     string(res.ScopeUsed.Level),
			Chapter:       res.ScopeUsed.ChapterID,
			Lesson:        res.ScopeUsed.LessonID,
			Fallback:      res.Fallback,
			LowConfidence: res.LowConfidence,
			LatencyMs:     res.Latency.Milliseconds(),
		},
	})
}
