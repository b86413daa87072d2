package middlewares

import (
	"errors"

	"nfe-import-backend/importer"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler centralizes error responses and keeps messages sanitized.
// Importer pipeline errors map onto stable HTTP statuses so clients can tell
// a bad document from a duplicate from a configuration problem.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Fiber errors (use their status code + message)
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	// 2) Validation errors (422 + per-field info)
	if ve, ok := err.(validator.ValidationErrors); ok {
		out := make(map[string]string, len(ve))
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  out,
		})
	}

	// 3) Import pipeline taxonomy
	var malformed *importer.MalformedInputError
	if errors.As(err, &malformed) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": malformed.Error()})
	}
	var duplicate *importer.DuplicateInvoiceError
	if errors.As(err, &duplicate) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": duplicate.Error()})
	}
	var prerequisite *importer.MissingPrerequisiteError
	if errors.As(err, &prerequisite) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"message": prerequisite.Error()})
	}

	// 4) Unknown errors (500)
	log.Error().Err(err).Msg("internal error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "internal server error",
	})
}
