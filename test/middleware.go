package test

import (
	"errors"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	log "github.com/xcrape/xcrape/internal/logger"
)

// RequestLogger logs every request the fake backend serves at debug level
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.DebugWithFields("backend request", map[string]interface{}{
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
			"method":  c.Method(),
			"path":    c.Path(),
		})

		return err
	}
}

// ErrorHandler renders handler errors the way the scraping backend does,
// as {"detail": message}
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	if code >= fiber.StatusInternalServerError {
		log.ErrorWithFields("backend handler failed", map[string]interface{}{
			"path":  c.Path(),
			"error": err.Error(),
		})
	}

	return c.Status(code).JSON(fiber.Map{"detail": err.Error()})
}
