package retriever

import (
	"ai-book-tutor/internal/core/retriever"

	"github.com/gofiber/fiber/v3"
)

func RegisterRoutes(r fiber.Router, engine *retriever.Engine) {
	h := &Handler{Engine: engine}
	grp := r.Group("/retriever")

	grp.Get("/search", h.HandleSearch)
}
