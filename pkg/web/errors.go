package web

import (
	"errors"

	"github.com/corretor-crm/corretor/pkg/integrations"
	"github.com/corretor-crm/corretor/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service and integration errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var apiErr *integrations.APIError

	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case services.IsNotFoundError(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("not_found").
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case services.IsUnauthorizedError(err):
		problem := problems.NewStatusProblem(401).
			WithInstance(c.Path()).
			WithType("unauthorized").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnauthorized).JSON(problem)

	case errors.Is(err, integrations.ErrNotConfigured):
		problem := problems.NewStatusProblem(412).
			WithInstance(c.Path()).
			WithType("integration_not_configured").
			WithDetail(err.Error())

		return c.Status(fiber.StatusPreconditionFailed).JSON(problem)

	case errors.As(err, &apiErr):
		problem := problems.NewStatusProblem(502).
			WithInstance(c.Path()).
			WithType("integration_error").
			WithDetail(apiErr.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	default:
		return internalError(c, err)
	}
}

// webhookError answers webhook callers with {"error": message}.
func webhookError(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	switch {
	case services.IsUnauthorizedError(err):
		status = fiber.StatusUnauthorized
	case services.IsValidationError(err), services.IsNotFoundError(err):
		status = fiber.StatusBadRequest
	}

	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}
