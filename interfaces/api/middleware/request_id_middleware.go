package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"veobatch/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware ติด request ID ให้ทุก request
// client ส่งมาเองได้ (เช่น retry เดิม) ไม่งั้น generate ใหม่
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDHeader, requestID)

		// ฝังลง context ให้ logger.*Context ตามรอยได้ทั้ง chain
		c.SetUserContext(logger.ContextWithRequestID(c.Context(), requestID))
		c.Locals("request_id", requestID)

		return c.Next()
	}
}
