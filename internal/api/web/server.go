// Package web REST API просмотра снимков для браузерного клиента.
package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	app "xray-review/internal/application"
	"xray-review/internal/log"
)

// Options настройки сервера.
type Options struct {
	Addr           string
	BodyLimit      int
	RequestTimeout time.Duration
	// Health проверка внешнего сервиса инференса, может быть nil.
	Health func(ctx context.Context) error
}

// Server HTTP-сервер поверх ReviewService.
type Server struct {
	app     *fiber.App
	opts    Options
	reviews *app.ReviewService
}

// NewServer создаёт сервер и регистрирует маршруты.
func NewServer(reviews *app.ReviewService, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	s := &Server{opts: opts, reviews: reviews}

	fapp := fiber.New(fiber.Config{
		AppName:               "xray-review",
		DisableStartupMessage: true,
		BodyLimit:             opts.BodyLimit,
		ErrorHandler:          errorHandler,
	})

	fapp.Use(cors.New(cors.Config{
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders: "Content-Disposition",
	}))

	api := fapp.Group("/api")
	api.Get("/health", s.handleHealth)

	sessions := api.Group("/sessions")
	sessions.Post("/", s.handleOpen)
	sessions.Get("/:id", s.handleView)
	sessions.Delete("/:id", s.handleClose)
	sessions.Post("/:id/image", s.handleUpload)
	sessions.Delete("/:id/image", s.handleClear)
	sessions.Put("/:id/viewport", s.handleViewport)
	sessions.Post("/:id/detect", s.handleDetect)
	sessions.Post("/:id/analyze", s.handleAnalyze)
	sessions.Post("/:id/pointer", s.handlePointer)
	sessions.Put("/:id/tool", s.handleTool)
	sessions.Delete("/:id/annotations", s.handleClearAnnotations)
	sessions.Get("/:id/overlay", s.handleOverlay)
	sessions.Get("/:id/shapes", s.handleShapes)
	sessions.Post("/:id/report", s.handleReport)

	s.app = fapp
	return s
}

// App для тестов через app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Run слушает адрес, пока не отменён ctx.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", s.opts.Addr)
		errCh <- s.app.Listen(s.opts.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// errorHandler отдаёт ошибки fiber в том же формате, что и обработчики.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
