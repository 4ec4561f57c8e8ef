package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func CorsMiddleware() fiber.Handler {
	return cors.New(cors.Config{
		// dashboard dev servers - production จำกัดผ่าน reverse proxy อีกชั้น
		AllowOrigins:     "http://localhost:5173,http://localhost:3000",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS,HEAD",
		AllowHeaders:     "Origin,Content-Type,Accept,Cache-Control,X-Requested-With,X-Request-ID",
		ExposeHeaders:    "Content-Length,Content-Disposition,X-Request-ID",
		AllowCredentials: true,
	})
}
