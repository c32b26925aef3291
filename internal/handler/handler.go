package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cravaudio/api/internal/service"
	"github.com/cravaudio/api/pkg/response"
)

// serviceError maps a pipeline error to its HTTP rendering. Unknown
// errors are never surfaced verbatim.
func serviceError(c *fiber.Ctx, err error) error {
	se, ok := service.AsError(err)
	if !ok {
		return response.ServiceError(c, "Internal error")
	}

	var status int
	switch se.Code {
	case service.CodeValidationError:
		status = fiber.StatusBadRequest
	case service.CodeModerationRejected:
		status = fiber.StatusUnprocessableEntity
	case service.CodeRateLimited:
		status = fiber.StatusTooManyRequests
	case service.CodeInsufficientCredits:
		status = fiber.StatusPaymentRequired
	case service.CodeProviderUnavailable:
		status = fiber.StatusServiceUnavailable
	case service.CodeNotFound:
		status = fiber.StatusNotFound
	case service.CodeJobFailed:
		status = fiber.StatusBadGateway
	default:
		status = fiber.StatusInternalServerError
	}

	return response.Error(c, status, se.Code, se.Message, se.Details)
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
