package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"veobatch/domain/dto"
	"veobatch/domain/models"
	"veobatch/domain/services"
	"veobatch/pkg/logger"
	"veobatch/pkg/utils"
)

type VideoHandler struct {
	videoService      services.VideoService
	generationService services.GenerationService
}

func NewVideoHandler(videoService services.VideoService, generationService services.GenerationService) *VideoHandler {
	return &VideoHandler{
		videoService:      videoService,
		generationService: generationService,
	}
}

func (h *VideoHandler) ListByJob(c *fiber.Ctx) error {
	ctx := c.UserContext()

	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid job ID")
	}

	videos, err := h.videoService.ListByJob(ctx, jobID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list videos", "job_id", jobID, "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	return utils.SuccessResponse(c, dto.VideosToVideoResponses(videos))
}

func (h *VideoHandler) GetVideo(c *fiber.Ctx) error {
	ctx := c.UserContext()

	videoID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid video ID")
	}

	video, err := h.videoService.GetVideo(ctx, videoID)
	if err != nil {
		return utils.NotFoundResponse(c, "Video not found")
	}

	return utils.SuccessResponse(c, dto.VideoToVideoResponse(video))
}

func (h *VideoHandler) SelectVideo(c *fiber.Ctx) error {
	ctx := c.UserContext()

	videoID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid video ID")
	}

	var req dto.SelectVideoRequest
	if err := c.BodyParser(&req); err != nil {
		logger.WarnContext(ctx, "Invalid request body", "error", err)
		return utils.BadRequestResponse(c, "Invalid request body")
	}

	err = h.videoService.SetSelected(ctx, videoID, req.Selected)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, "Video not found")
		}
		logger.ErrorContext(ctx, "Failed to update selection", "video_id", videoID, "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	return utils.SuccessResponse(c, fiber.Map{"id": videoID, "selected": req.Selected})
}

// RegenerateVideo รัน pipeline ใหม่เฉพาะ video ตัวเดียว
// ใช้ได้กับ video ที่จบแล้วเท่านั้น (completed หรือ failed)
func (h *VideoHandler) RegenerateVideo(c *fiber.Ctx) error {
	ctx := c.UserContext()

	videoID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid video ID")
	}

	var req dto.RegenerateVideoRequest
	if err := c.BodyParser(&req); err != nil {
		logger.WarnContext(ctx, "Invalid request body", "error", err)
		return utils.BadRequestResponse(c, "Invalid request body")
	}

	if err := utils.ValidateStruct(&req); err != nil {
		errs := utils.GetValidationErrors(err)
		return utils.ValidationErrorResponse(c, errs)
	}

	// ตรวจสถานะก่อน spawn จะได้ตอบ client ได้ตรงๆ
	video, err := h.videoService.GetVideo(ctx, videoID)
	if err != nil {
		return utils.NotFoundResponse(c, "Video not found")
	}
	if !video.IsTerminal() {
		return utils.ConflictResponse(c, "Video must be completed or failed before regenerating")
	}

	logger.InfoContext(ctx, "Regenerate requested", "video_id", videoID, "new_prompt", req.NewPrompt != "")

	// regenerate วิ่งผ่าน automation driver - อาจใช้เวลาหลายนาที รันใน background
	bgCtx := logger.ContextWithRequestID(context.Background(), logger.GetRequestID(ctx))
	go func() {
		err := h.generationService.RegenerateVideo(bgCtx, videoID, req.NewPrompt)
		if err != nil {
			logger.Warn("Regenerate ended with error", "video_id", videoID, "error", err)
		}
	}()

	return utils.SuccessResponse(c, fiber.Map{"id": videoID, "message": "Regeneration started"})
}

// BulkDownload สตรีม zip ของ videos ที่เลือกกลับไปตรงๆ
func (h *VideoHandler) BulkDownload(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req dto.BulkDownloadRequest
	if err := c.BodyParser(&req); err != nil {
		logger.WarnContext(ctx, "Invalid request body", "error", err)
		return utils.BadRequestResponse(c, "Invalid request body")
	}

	if err := utils.ValidateStruct(&req); err != nil {
		errs := utils.GetValidationErrors(err)
		return utils.ValidationErrorResponse(c, errs)
	}

	resolution := req.Resolution
	if resolution == "" {
		resolution = models.Resolution720p
	}

	filename := fmt.Sprintf("videos_%s_%s.zip", resolution, time.Now().Format("20060102_150405"))
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))

	err := h.videoService.BulkDownload(ctx, req.VideoIDs, resolution, c.Response().BodyWriter())
	if err != nil {
		logger.WarnContext(ctx, "Bulk download failed", "videos", len(req.VideoIDs), "error", err)
		return utils.BadRequestResponse(c, err.Error())
	}

	return nil
}
