package transport

import (
	"errors"

	"github.com/creativeops/review-engine/internal/domain"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		if errors.Is(err, domain.ErrIntegrity) {
			logger.Error("request blocked by integrity violation",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Bool("security", true),
				zap.Error(err),
			)
		} else {
			logger.Error("request error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
