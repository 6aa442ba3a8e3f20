package web

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	app "xray-review/internal/application"
	"xray-review/internal/canvas"
	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/geometry"
)

// OpenRequest тело создания сессии
type OpenRequest struct {
	DoctorName string `json:"doctor_name"`
}

// ViewportRequest экранный размер снимка у клиента
type ViewportRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ToolRequest смена инструмента
type ToolRequest struct {
	Tool entity.Tool `json:"tool"`
}

// ReportRequest поля отчёта от врача
type ReportRequest struct {
	PatientID  string            `json:"patient_id"`
	DoctorName string            `json:"doctor_name"`
	Notes      string            `json:"notes"`
	Mode       entity.ReportMode `json:"mode"`
}

// statusFor переводит ошибку сервиса в HTTP-статус. fallback для ошибок внешних сервисов.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, app.ErrNoImage),
		errors.Is(err, canvas.ErrUnsupportedImage),
		errors.Is(err, canvas.ErrUnknownTool),
		errors.Is(err, geometry.ErrNotLaidOut):
		return fiber.StatusBadRequest
	case errors.Is(err, app.ErrNotReady),
		errors.Is(err, app.ErrNoAnalysis),
		errors.Is(err, app.ErrBusy),
		errors.Is(err, app.ErrStaleResult),
		errors.Is(err, canvas.ErrToolLocked):
		return fiber.StatusConflict
	case errors.Is(err, app.ErrNotConfigured):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	}
	return fallback
}

func fail(c *fiber.Ctx, err error, fallback int) error {
	return c.Status(statusFor(err, fallback)).JSON(fiber.Map{"error": err.Error()})
}

// credentials учётные данные вызывающего из заголовка Authorization.
func credentials(c *fiber.Ctx) entity.Credentials {
	auth := c.Get(fiber.HeaderAuthorization)
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return entity.Credentials{Token: token}
}

func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), s.opts.RequestTimeout)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok", "sessions": s.reviews.Sessions()}
	if s.opts.Health == nil {
		return c.JSON(status)
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	if err := s.opts.Health(ctx); err != nil {
		status["status"] = "degraded"
		status["inference"] = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	status["inference"] = "ok"
	return c.JSON(status)
}

func (s *Server) handleOpen(c *fiber.Ctx) error {
	var req OpenRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, err, fiber.StatusBadRequest)
		}
	}

	id, err := s.reviews.Open(c.UserContext(), req.DoctorName)
	if err != nil {
		return fail(c, err, fiber.StatusInternalServerError)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (s *Server) handleView(c *fiber.Ctx) error {
	v, err := s.reviews.View(c.Params("id"))
	if err != nil {
		return fail(c, err, fiber.StatusInternalServerError)
	}
	return c.JSON(v)
}

func (s *Server) handleClose(c *fiber.Ctx) error {
	s.reviews.Close(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fail(c, err, fiber.StatusBadRequest)
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, err, fiber.StatusBadRequest)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fail(c, err, fiber.StatusBadRequest)
	}

	natural, err := s.reviews.Load(c.Params("id"), fh.Filename, data)
	if err != nil {
		return fail(c, err, fiber.StatusInternalServerError)
	}
	return c.JSON(fiber.Map{"natural": natural})
}

func (s *Server) handleClear(c *fiber.Ctx) error {
	if err := s.reviews.Clear(c.Params("id")); err != nil {
		return fail(c, err, fiber.StatusInternalServerError)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleViewport(c *fiber.Ctx) error {
	var req ViewportRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, err, fiber.StatusBadRequest)
	}
	if err := s.reviews.SetViewport(c.Params("id"), req.Width, req.Height); err != nil {
		return fail(c, err, fiber.StatusInternalServerError)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleDetect(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	seg, err := s.reviews.Detect(ctx, c.Params("id"), credentials(c))
	if err != nil {
		return fail(c, err, fiber.StatusBadGateway)
	}
	return c.JSON(fiber.Map{
		"detections": seg.Detections,
		"has_mask":   len(seg.Mask) > 0,
		"method":     seg.Method,
	})
}

func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	res, err := s.reviews.Analyze(ctx, c.Params("id"), credentials(c))
	if err != nil {
		return fail(c, err, fiber.StatusBadGateway)
	}
	return c.JSON(res)
}

func (s *Server) handlePointer(c *fiber.Ctx) error {
	var ev canvas.PointerEvent
	if err := c.BodyParser(&ev); err != nil {
		return fail(c, err, fiber.StatusBadRequest)
	}
	handled, err := s.reviews.Pointer(c.Params("id"), ev)
	if err != nil {
		return fail(c, err, fiber.StatusInternalServerError)
	}
	return c.JSON(fiber.Map{"handled": handled})
}

func (s *Server) handleTool(c *fiber.Ctx) error {
	var req ToolRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, err, fiber.StatusBadRequest)
	}
	if err := s.reviews.SetTool(c.Params("id"), req.Tool); err != nil {
		return fail(c, err, fiber.StatusInternalServerError)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleClearAnnotations(c *fiber.Ctx) error {
	if err := s.reviews.ClearAnnotations(c.Params("id")); err != nil {
		return fail(c, err, fiber.StatusInternalServerError)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleOverlay(c *fiber.Ctx) error {
	data, err := s.reviews.Overlay(c.Params("id"))
	if err != nil {
		return fail(c, err, fiber.StatusInternalServerError)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(data)
}

func (s *Server) handleShapes(c *fiber.Ctx) error {
	view, err := s.reviews.Shapes(c.Params("id"))
	if err != nil {
		return fail(c, err, fiber.StatusInternalServerError)
	}
	return c.JSON(view)
}

func (s *Server) handleReport(c *fiber.Ctx) error {
	var req ReportRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, err, fiber.StatusBadRequest)
		}
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	res, err := s.reviews.Report(ctx, c.Params("id"), credentials(c), app.ReportInput{
		PatientID:  req.PatientID,
		DoctorName: req.DoctorName,
		Notes:      req.Notes,
		Mode:       req.Mode,
	})
	if err != nil {
		return fail(c, err, fiber.StatusBadGateway)
	}

	if len(res.Document) == 0 {
		return c.JSON(fiber.Map{"report_id": res.ReportID, "message": res.Message})
	}

	c.Attachment(res.Filename)
	if res.ContentType != "" {
		c.Set(fiber.HeaderContentType, res.ContentType)
	}
	return c.Send(res.Document)
}
