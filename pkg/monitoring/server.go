package monitoring

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/metrics"
)

type HealthCheck func(ctx context.Context) error

// QueueStats renders an HTML overview of the queues.
type QueueStats interface {
	Stats(layout string, refresh string) (string, error)
}

type Server struct {
	Collector *metrics.Collector

	// QueueStats is nil when the queue backend has no overview.
	QueueStats QueueStats

	Checks map[string]HealthCheck
}

func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(NewLogger())

	app.Get("/health", s.health)

	if s.Collector != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.Collector.Handler()))
	}

	app.Get("/queue/stats", s.queueStats)

	return app
}

func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	failures := fiber.Map{}
	for name, check := range s.Checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "error",
			"checks": failures,
		})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) queueStats(c *fiber.Ctx) error {
	if s.QueueStats == nil {
		return c.Status(fiber.StatusNotFound).SendString("queue backend has no stats")
	}

	html, err := s.QueueStats.Stats(c.Query("layout"), c.Query("refresh"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(html)
}

// Start serves in the background until the context is cancelled. An empty address
// disables the server.
func (s *Server) Start(ctx context.Context, address string) {
	if address == "" {
		return
	}

	app := s.App()

	go func() {
		log.Info().Str("address", address).Msg("Monitoring server listening")
		if err := app.Listen(address); err != nil {
			log.Error().Err(err).Msg("Monitoring server stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Error().Err(err).Msg("Monitoring server shutdown")
		}
	}()
}
