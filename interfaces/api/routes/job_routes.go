package routes

import (
	"github.com/gofiber/fiber/v2"
	"veobatch/interfaces/api/handlers"
)

func SetupJobRoutes(api fiber.Router, h *handlers.Handlers) {
	jobs := api.Group("/jobs")
	jobs.Post("/", h.JobHandler.CreateJob)
	jobs.Get("/", h.JobHandler.ListJobs)
	jobs.Get("/:id", h.JobHandler.GetJob)
	jobs.Delete("/:id", h.JobHandler.DeleteJob)
	jobs.Post("/:id/upload", h.JobHandler.UploadInputs)
	jobs.Post("/:id/start", h.JobHandler.StartJob)
	jobs.Get("/:id/videos", h.VideoHandler.ListByJob)
}
