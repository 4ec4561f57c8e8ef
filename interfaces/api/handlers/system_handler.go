package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"veobatch/application/serviceimpl"
	"veobatch/pkg/logger"
	"veobatch/pkg/utils"
)

type SystemHandler struct {
	cleanupService *serviceimpl.StorageCleanupService
}

func NewSystemHandler(cleanupService *serviceimpl.StorageCleanupService) *SystemHandler {
	return &SystemHandler{
		cleanupService: cleanupService,
	}
}

// GetStorageStats ภาพรวมการใช้ดิสก์สำหรับหน้า admin
func (h *SystemHandler) GetStorageStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	stats, err := h.cleanupService.GetStorageStats(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to collect storage stats", "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	return utils.SuccessResponse(c, stats)
}

// TriggerCleanup สั่ง cleanup รอบพิเศษนอกตาราง cron
func (h *SystemHandler) TriggerCleanup(c *fiber.Ctx) error {
	ctx := c.UserContext()

	logger.InfoContext(ctx, "Manual storage cleanup triggered")

	bgCtx := logger.ContextWithRequestID(context.Background(), logger.GetRequestID(ctx))
	go h.cleanupService.RunCleanup(bgCtx)

	return utils.SuccessResponse(c, fiber.Map{"message": "Cleanup started"})
}
