package server

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/forPelevin/blockcut/internal/domain/blocks"
	"github.com/forPelevin/blockcut/internal/domain/shorts"
	"github.com/forPelevin/blockcut/internal/domain/templates"
	"github.com/forPelevin/blockcut/internal/logger"
	"github.com/forPelevin/blockcut/internal/usecase"
)

const version = "1.0.0"

type Deps struct {
	Usecase usecase.Usecase
	// Split and Dedup are the defaults requests start from.
	Split   blocks.Config
	Dedup   shorts.Options
	Catalog *templates.Catalog
	Rand    *rand.Rand
	Log     logger.Logger
	// BodyLimitMB caps request bodies; transcripts of long videos are large.
	BodyLimitMB int
	// AccessLog enables per-request log lines.
	AccessLog bool
}

type Server struct {
	d   Deps
	app *fiber.App

	rngMu sync.Mutex
}

func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if d.BodyLimitMB <= 0 {
		d.BodyLimitMB = 32
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             d.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	if d.AccessLog {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	s := &Server{d: d, app: app}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": version,
		})
	})

	v1 := s.app.Group("/v1")
	v1.Post("/segment", s.handleSegment)
	v1.Post("/reassemble", s.handleReassemble)
	v1.Post("/parse", s.handleParse)
	v1.Get("/templates", s.handleTemplates)
	v1.Post("/templates/select", s.handleSelectTemplate)
	v1.Get("/runs", s.handleRuns)
}

// App exposes the router for tests and for embedding.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() { errc <- s.app.Listen(addr) }()
	s.d.Log.Info(ctx, "server listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.d.Log.Info(context.Background(), "shutting down gracefully")
		if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			return err
		}
		return <-errc
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
