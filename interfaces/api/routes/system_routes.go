package routes

import (
	"github.com/gofiber/fiber/v2"
	"veobatch/interfaces/api/handlers"
)

func SetupSystemRoutes(api fiber.Router, h *handlers.Handlers) {
	system := api.Group("/system")
	system.Get("/storage", h.SystemHandler.GetStorageStats)
	system.Post("/cleanup", h.SystemHandler.TriggerCleanup)
}
