package routes

import (
	"github.com/gofiber/fiber/v2"
	"veobatch/interfaces/api/handlers"
)

func SetupRoutes(app *fiber.App, h *handlers.Handlers) {
	SetupHealthRoutes(app)

	api := app.Group("/api/v1")

	SetupJobRoutes(api, h)
	SetupVideoRoutes(api, h)
	SetupUpscaleRoutes(api, h)
	SetupSystemRoutes(api, h)
}
