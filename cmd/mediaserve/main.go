// Command mediaserve hosts the content-addressed archive over HTTP so
// hosted URLs resolve. Files are served read-only with CORS open for
// web embeds.
package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/archivebot/mediarchive/internal/archive"
	"github.com/archivebot/mediarchive/internal/config"
)

func main() {
	cfg := config.Load()

	placer, err := archive.NewPlacer(cfg.ArchiveRoot, cfg.PublicBaseURL)
	if err != nil {
		log.Fatalf("open archive: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "mediaserve",
		DisableStartupMessage: true,
	})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,HEAD,OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := placer.Stats()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(stats)
	})
	app.Static("/media", cfg.ArchiveRoot, fiber.Static{
		ByteRange: true,
		MaxAge:    3600,
	})

	log.Printf("serving %s on %s", cfg.ArchiveRoot, cfg.ServeAddr)
	if err := app.Listen(cfg.ServeAddr); err != nil {
		log.Fatalf("media server stopped: %v", err)
	}
}
