package http

import (
	"context"
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"

	"assessment-generator/internal/model"
	"assessment-generator/internal/usecase"
	"assessment-generator/pkg/logger"
)

const (
	msgGenerated        = "IT Assessment generated successfully"
	msgAlreadyGenerated = "IT Assessment has already been generated for this user in the last 48 hours"
	msgMissingFields    = "Missing required fields"
	msgBotDetected      = "Bot detected"
	msgCaptchaRejected  = "Bot detected, please try again"
	msgTokenInUse       = "Verification token does not match this email address"
	msgInternal         = "An error occurred while generating the IT Assessment"
	msgTooManyRequests  = "Too many requests, please try again later"
)

// Processor runs one submission through the assessment pipeline.
type Processor interface {
	Process(ctx context.Context, req usecase.Request) (*usecase.Result, error)
}

// FileResolver maps a download name to a local file path.
type FileResolver interface {
	Resolve(file string) (string, error)
}

type Handler struct {
	processor Processor
	files     FileResolver
	log       *logger.Logger
}

// NewHandler wires the handler. files may be nil when documents are hosted
// by the rendering service.
func NewHandler(p Processor, files FileResolver, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{processor: p, files: files, log: log}
}

type assessmentReq struct {
	FormData          model.FormSubmission `json:"formData"`
	VerificationToken string               `json:"verificationToken"`
	Honeypot          string               `json:"honeypot"`
	RecaptchaToken    string               `json:"recaptchaToken"`
}

func (h *Handler) GenerateAssessment(c *fiber.Ctx) error {
	var req assessmentReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}

	res, err := h.processor.Process(c.UserContext(), usecase.Request{
		Form:              req.FormData,
		VerificationToken: req.VerificationToken,
		Honeypot:          req.Honeypot,
		RecaptchaToken:    req.RecaptchaToken,
		RemoteIP:          c.IP(),
	})
	if err != nil {
		return h.writeError(c, err)
	}

	if res.AlreadyGenerated {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": msgAlreadyGenerated})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": msgGenerated, "downloadUrl": res.DownloadURL})
}

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	var verr *usecase.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": verr.Fields})
	case errors.Is(err, usecase.ErrMissingFields):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgMissingFields})
	case errors.Is(err, usecase.ErrBotDetected):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": msgBotDetected})
	case errors.Is(err, usecase.ErrCaptchaRejected):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": msgCaptchaRejected})
	case errors.Is(err, usecase.ErrTokenInUse):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": msgTokenInUse})
	}

	step := "unknown"
	var serr *usecase.StepError
	if errors.As(err, &serr) {
		step = serr.Step
	}
	kv := []interface{}{"step", step, "error", err.Error(), "request_id", requestID(c)}
	if errors.Is(err, usecase.ErrRenderTimeout) {
		kv = append(kv, "render_timeout", true)
	}
	h.log.Error("assessment pipeline failed", kv...)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msgInternal})
}

// Download serves a locally rendered assessment until its link expires.
func (h *Handler) Download(c *fiber.Ctx) error {
	if h.files == nil {
		return fiber.ErrNotFound
	}
	path, err := h.files.Resolve(c.Params("file"))
	if errors.Is(err, os.ErrNotExist) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "document not found or link expired"})
	}
	if err != nil {
		return err
	}
	return c.Download(path, "IT-Assessment.pdf")
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
