package routes

import (
	"github.com/gofiber/fiber/v2"
	"veobatch/interfaces/api/handlers"
)

func SetupVideoRoutes(api fiber.Router, h *handlers.Handlers) {
	videos := api.Group("/videos")
	videos.Get("/:id", h.VideoHandler.GetVideo)
	videos.Patch("/:id/select", h.VideoHandler.SelectVideo)
	videos.Post("/:id/regenerate", h.VideoHandler.RegenerateVideo)
	videos.Post("/bulk-download", h.VideoHandler.BulkDownload)
}
