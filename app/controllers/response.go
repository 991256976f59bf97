package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/americavendas/marketplace/internal/pkg/apperrors"
)

// respondError converts a service error into the JSON error envelope.
// Infrastructure failures are logged with their cause and answered with a
// generic retry message.
func respondError(c *fiber.Ctx, err error) error {
	status := apperrors.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
	} else {
		log.Debugf("[API] %s %s: %v", c.Method(), c.Path(), err)
	}

	body := fiber.Map{
		"error":   string(apperrors.KindOf(err)),
		"message": apperrors.PublicMessage(err),
	}
	if details := apperrors.DetailsOf(err); details != nil {
		body["details"] = details
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, message string) error {
	return respondError(c, apperrors.Validation(message))
}
