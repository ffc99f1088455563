package main

import (
	"fmt"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/api/healthcheck"
	ingestapi "ai-book-tutor/internal/api/ingest"
	retrieverapi "ai-book-tutor/internal/api/retriever"
	tutorapi "ai-book-tutor/internal/api/tutor"
	uploadapi "ai-book-tutor/internal/api/upload"
	"ai-book-tutor/internal/core/content"
	"ai-book-tutor/internal/core/llm"
	"ai-book-tutor/internal/core/retriever"
	"ai-book-tutor/internal/core/session"
	"ai-book-tutor/internal/database"
	"ai-book-tutor/internal/database/model"
	"ai-book-tutor/internal/middleware"
	"ai-book-tutor/internal/services/ingest"
	"ai-book-tutor/pkg/logger"

	"github.com/gofiber/fiber/v3"
)

func main() {
	db, err := database.GetDB()
	if err != nil {
		logger.Fatal(err, "%v: database unavailable", config.ModuleServer)
	}
	if err := db.AutoMigrate(
		&model.Document{},
		&model.Chunk{},
		&model.StudentProfile{},
		&model.Message{},
	); err != nil {
		logger.Fatal(err, "%v: migration failed", config.ModuleServer)
	}

	// The curriculum snapshot is loaded once at startup; new ingestions take
	// effect on the next restart.
	chunks, err := ingest.LoadChunks(db)
	if err != nil {
		logger.Fatal(err, "%v: failed to load curriculum chunks", config.ModuleServer)
	}
	store := content.NewStore(chunks)
	logger.Info("%v: loaded %d chunks across %d chapters", config.ModuleServer, store.Len(), len(store.Chapters()))

	var index retriever.Index
	switch config.Cfg.Retriever.Backend {
	case "memory":
		index = retriever.NewMemoryIndex(store)
	default:
		index = retriever.NewMilvusIndex()
	}
	engine := retriever.NewEngine(retriever.OpenAIEmbedder{}, index, store)

	provider := llm.NewOpenAIProvider()
	manager := session.NewManager(session.NewGormStore(), engine, provider, store.Chapters())

	app := fiber.New(fiber.Config{
		AppName:   config.Cfg.Server.AppName,
		BodyLimit: config.Cfg.Server.BodyLimit,
	})
	middleware.Register(app)

	healthcheck.RegisterRoutes(app)
	uploadapi.RegisterRoutes(app)
	ingestapi.RegisterRoutes(app)
	retrieverapi.RegisterRoutes(app, engine)
	tutorapi.RegisterRoutes(app, manager)

	addr := fmt.Sprintf(":%d", config.Cfg.Server.Port)
	if err := app.Listen(addr); err != nil {
		logger.Fatal(err, "%v: server stopped", config.ModuleServer)
	}
}
