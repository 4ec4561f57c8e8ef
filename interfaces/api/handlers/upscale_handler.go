package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"veobatch/domain/dto"
	"veobatch/domain/services"
	"veobatch/pkg/logger"
	"veobatch/pkg/utils"
)

type UpscaleHandler struct {
	upscaleService services.UpscaleService
}

func NewUpscaleHandler(upscaleService services.UpscaleService) *UpscaleHandler {
	return &UpscaleHandler{
		upscaleService: upscaleService,
	}
}

// CreateTask สร้าง batch upscale task แล้วคืน task id ให้ client poll
func (h *UpscaleHandler) CreateTask(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if h.upscaleService == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, utils.ErrCodeInternalError, "Upscaling is unavailable (FFmpeg not installed)", nil)
	}

	var req dto.CreateUpscaleRequest
	if err := c.BodyParser(&req); err != nil {
		logger.WarnContext(ctx, "Invalid request body", "error", err)
		return utils.BadRequestResponse(c, "Invalid request body")
	}

	if err := utils.ValidateStruct(&req); err != nil {
		errs := utils.GetValidationErrors(err)
		logger.WarnContext(ctx, "Validation failed", "errors", errs)
		return utils.ValidationErrorResponse(c, errs)
	}

	taskID, err := h.upscaleService.CreateTask(ctx, req.VideoIDs, req.QualityPreset)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, "One or more videos not found")
		}
		if errors.Is(err, services.ErrInvalidState) {
			return utils.ConflictResponse(c, "All videos must be completed before upscaling")
		}
		logger.WarnContext(ctx, "Upscale task rejected", "error", err)
		return utils.BadRequestResponse(c, err.Error())
	}

	logger.InfoContext(ctx, "Upscale task accepted", "task_id", taskID, "videos", len(req.VideoIDs))

	return utils.CreatedResponse(c, dto.CreateUpscaleResponse{TaskID: taskID})
}

// GetTask คืน snapshot สถานะ task สำหรับ polling
func (h *UpscaleHandler) GetTask(c *fiber.Ctx) error {
	if h.upscaleService == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, utils.ErrCodeInternalError, "Upscaling is unavailable (FFmpeg not installed)", nil)
	}

	taskID := c.Params("taskId")
	if taskID == "" {
		return utils.BadRequestResponse(c, "Task ID is required")
	}

	task, err := h.upscaleService.GetStatus(taskID)
	if err != nil {
		return utils.NotFoundResponse(c, "Task not found")
	}

	return utils.SuccessResponse(c, task)
}
