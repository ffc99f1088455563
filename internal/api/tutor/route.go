package tutor

import (
	"ai-book-tutor/internal/core/session"

	"github.com/gofiber/fiber/v3"
)

func RegisterRoutes(r fiber.Router, manager *session.Manager) {
	h := &Handler{Manager: manager}
	grp := r.Group("/tutor")

	grp.Post("/turn", h.HandleTurn)
}
