package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Audit emits one structured record per request. Client errors log at WARN and
// server errors at ERROR; the request id comes from the handler context.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		ctx := c.UserContext()
		switch {
		case err != nil:
			attrs = append(attrs, slog.Any("error", err))
			logger.ErrorContext(ctx, "request completed", attrs...)
			return err
		case status >= fiber.StatusInternalServerError:
			logger.ErrorContext(ctx, "request completed", attrs...)
		case status >= fiber.StatusBadRequest:
			logger.WarnContext(ctx, "request completed", attrs...)
		default:
			logger.InfoContext(ctx, "request completed", attrs...)
		}
		return nil
	}
}
