package routes

import (
	"github.com/gofiber/fiber/v2"
	"veobatch/interfaces/api/handlers"
)

func SetupUpscaleRoutes(api fiber.Router, h *handlers.Handlers) {
	upscale := api.Group("/upscale")
	upscale.Post("/", h.UpscaleHandler.CreateTask)
	upscale.Get("/:taskId", h.UpscaleHandler.GetTask)
}
