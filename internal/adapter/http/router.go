package http

import (
	"github.com/gofiber/fiber/v2"

	"assessment-generator/internal/config"
	"assessment-generator/pkg/logger"
)

// AssessmentPath is the lead form endpoint.
const AssessmentPath = "/api/it-assessment"

// NewApp builds the fiber app with every route and middleware installed.
func NewApp(h *Handler, cfg config.ServerConfig, log *logger.Logger) *fiber.App {
	if log == nil {
		log = logger.Nop()
	}
	app := fiber.New(fiber.Config{
		AppName:               "assessment-generator",
		DisableStartupMessage: true,
	})

	app.Use(requestIDMiddleware())
	app.Use(requestLogger(log))
	app.Use(corsMiddleware(cfg))

	app.Get("/health", h.Health)
	app.Post(AssessmentPath, rateLimiter(cfg), h.GenerateAssessment)
	if h.files != nil {
		app.Get("/downloads/:file", h.Download)
	}
	return app
}
