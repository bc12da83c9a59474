package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"scenevoice/internal/service"
	"scenevoice/internal/storage"
	"scenevoice/internal/vision"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal: validation and mapping only, business logic lives
// in the service layer.
func RegisterRoutes(app *fiber.App, store storage.Storage, svc service.AnalysisService) {
	app.Get("/", Root())
	app.Get("/health", HealthCheck(store))
	app.Get("/healthz", LivenessProbe())
	app.Post("/analyze", Analyze(svc))
	app.Get("/audio/:filename", GetAudio(svc))
}

// Root godoc
//
//	@Summary		Service banner
//	@Description	Returns the service name and a pointer to the docs.
//	@Tags			meta
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/ [get]
func Root() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "SceneVoice API",
			"docs":    "/swagger/index.html",
		})
	}
}

// HealthCheck godoc
//
//	@Summary		Readiness probe
//	@Description	Verifies the artifact store is reachable.
//	@Tags			meta
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Failure		503	{object}	errorPayload
//	@Router			/health [get]
func HealthCheck(store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := store.Healthcheck(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness probe.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Analyze godoc
//
//	@Summary		Analyze an uploaded image
//	@Description	Accepts a jpg/jpeg/png upload, captions the scene, lists detected objects and returns a URL to synthesized speech for the caption.
//	@Tags			analysis
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"image to analyze"
//	@Success		200		{object}	service.AnalysisResult
//	@Failure		400		{object}	errorPayload
//	@Failure		422		{object}	errorPayload
//	@Failure		500		{object}	errorPayload
//	@Router			/analyze [post]
func Analyze(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		res, err := svc.Analyze(c.UserContext(), f, fh.Filename, fh.Size)
		if err != nil {
			return writeAnalyzeError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(res)
	}
}

// writeAnalyzeError translates pipeline errors into the response taxonomy.
func writeAnalyzeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUnsupportedMedia):
		return writeError(c, fiber.StatusUnprocessableEntity, "UNSUPPORTED_MEDIA_TYPE", service.ErrUnsupportedMedia.Error())
	case errors.Is(err, service.ErrPayloadTooLarge):
		return writeError(c, fiber.StatusUnprocessableEntity, "PAYLOAD_TOO_LARGE", service.ErrPayloadTooLarge.Error())
	}

	var procErr *vision.ProcessingError
	if errors.As(err, &procErr) {
		return writeError(c, fiber.StatusInternalServerError, "PROCESSING_ERROR", procErr.Error())
	}
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// GetAudio godoc
//
//	@Summary		Fetch generated speech
//	@Description	Streams a previously generated mp3 artifact by filename.
//	@Tags			analysis
//	@Produce		audio/mpeg
//	@Param			filename	path	string	true	"audio filename returned by /analyze"
//	@Success		200			{file}	file
//	@Failure		400			{object}	errorPayload
//	@Failure		404			{object}	errorPayload
//	@Router			/audio/{filename} [get]
func GetAudio(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filename := c.Params("filename")

		rc, info, err := svc.GetAudio(c.UserContext(), filename)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidFilename):
				return writeError(c, fiber.StatusBadRequest, "INVALID_FILENAME", "invalid filename")
			case errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "audio file not found")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}

		ct := info.ContentType
		if ct == "" {
			ct = "audio/mpeg"
		}
		c.Set(fiber.HeaderContentType, ct)

		size := -1
		if info.Size > 0 {
			size = int(info.Size)
		}
		// fasthttp closes rc after streaming since it implements io.Closer.
		return c.SendStream(rc, size)
	}
}
