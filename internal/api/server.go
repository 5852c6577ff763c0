package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/config"
)

// NewApp builds the fiber application with the shared middleware stack.
func NewApp(cfg config.ServerConfig, log *logrus.Logger) *fiber.App {
	bodyLimit := cfg.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 4
	}

	app := fiber.New(fiber.Config{
		AppName:               "Pedagogisk Dialog",
		ErrorHandler:          NewErrorHandler(log),
		BodyLimit:             bodyLimit * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Output: log.WriterLevel(logrus.InfoLevel),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins(cfg.CORSOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	return app
}

func origins(configured string) string {
	if configured == "" {
		return "http://localhost:5173,http://localhost:3000"
	}
	return configured
}
