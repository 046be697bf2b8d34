// Package web serves the narration HTTP API.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-narrate/pkg/hub"
	"github.com/teslashibe/go-narrate/pkg/narration"
)

// Narrator runs the pipeline. *narration.Service implements it.
type Narrator interface {
	Process(ctx context.Context, recordID string) (*narration.Result, error)
	Health(ctx context.Context) error
}

// Config configures the server.
type Config struct {
	Version string

	// DetailedStatus maps failure kinds to 404/422/502 instead of a
	// uniform 500.
	DetailedStatus bool

	// RequestLog enables per-request access logging.
	RequestLog bool

	// Metrics is served on /metrics when set.
	Metrics http.Handler

	// Feed streams narration events on /ws/events when set.
	Feed *hub.Hub

	// HealthTimeout bounds the deep health check. Default 5s.
	HealthTimeout time.Duration

	Logger *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	app      *fiber.App
	narrator Narrator
	cfg      Config
	log      *slog.Logger
}

// NewServer creates the server and registers routes.
func NewServer(n Narrator, cfg Config) *Server {
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		narrator: n,
		cfg:      cfg,
		log:      cfg.Logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-narrate",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if cfg.RequestLog {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	if cfg.Feed != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/events", websocket.New(cfg.Feed.Serve))
	}

	app.All("/api/narrate", s.handleNarrate)
	app.All("/", s.handleNarrate)

	s.app = app
	return s
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
