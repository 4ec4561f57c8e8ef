package handlers

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"veobatch/domain/dto"
	"veobatch/domain/models"
	"veobatch/domain/services"
	"veobatch/pkg/logger"
	"veobatch/pkg/utils"
)

type JobHandler struct {
	jobService    services.JobService
	uploadService services.UploadService
	tempPath      string
}

func NewJobHandler(jobService services.JobService, uploadService services.UploadService, tempPath string) *JobHandler {
	return &JobHandler{
		jobService:    jobService,
		uploadService: uploadService,
		tempPath:      tempPath,
	}
}

func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req dto.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		logger.WarnContext(ctx, "Invalid request body", "error", err)
		return utils.BadRequestResponse(c, "Invalid request body")
	}

	if err := utils.ValidateStruct(&req); err != nil {
		errs := utils.GetValidationErrors(err)
		logger.WarnContext(ctx, "Validation failed", "errors", errs)
		return utils.ValidationErrorResponse(c, errs)
	}

	job, err := h.jobService.CreateJob(ctx, &req)
	if err != nil {
		logger.WarnContext(ctx, "Job creation failed", "name", req.Name, "error", err)
		return utils.BadRequestResponse(c, err.Error())
	}

	logger.InfoContext(ctx, "Job created", "job_id", job.ID, "name", job.Name)

	return utils.CreatedResponse(c, dto.JobToJobResponse(job))
}

func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	ctx := c.UserContext()

	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid job ID")
	}

	job, err := h.jobService.GetJob(ctx, jobID)
	if err != nil {
		return utils.NotFoundResponse(c, "Job not found")
	}

	return utils.SuccessResponse(c, dto.JobToJobResponse(job))
}

func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var filter dto.JobFilterRequest
	if err := c.QueryParser(&filter); err != nil {
		logger.WarnContext(ctx, "Invalid query parameters", "error", err)
		return utils.BadRequestResponse(c, "Invalid query parameters")
	}

	if err := utils.ValidateStruct(&filter); err != nil {
		errs := utils.GetValidationErrors(err)
		logger.WarnContext(ctx, "Validation failed", "errors", errs)
		return utils.ValidationErrorResponse(c, errs)
	}

	jobs, total, err := h.jobService.ListJobs(ctx, models.JobStatus(filter.Status), filter.Limit)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to retrieve jobs", "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	jobResponses := make([]dto.JobResponse, len(jobs))
	for i, job := range jobs {
		jobResponses[i] = *dto.JobToJobResponse(job)
	}

	return utils.SuccessResponse(c, dto.JobListResponse{Jobs: jobResponses, Total: total})
}

// UploadInputs รับ multipart: images_zip (zip ของรูป) + prompts_file (text)
func (h *JobHandler) UploadInputs(c *fiber.Ctx) error {
	ctx := c.UserContext()

	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid job ID")
	}

	zipFile, err := c.FormFile("images_zip")
	if err != nil {
		logger.WarnContext(ctx, "Missing images_zip file", "job_id", jobID)
		return utils.BadRequestResponse(c, "images_zip file is required")
	}

	promptsFile, err := c.FormFile("prompts_file")
	if err != nil {
		logger.WarnContext(ctx, "Missing prompts_file", "job_id", jobID)
		return utils.BadRequestResponse(c, "prompts_file is required")
	}

	workDir, err := os.MkdirTemp(h.tempPath, "upload-")
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create upload work dir", "job_id", jobID, "error", err)
		return utils.InternalServerErrorResponse(c)
	}
	defer os.RemoveAll(workDir)

	zipPath := filepath.Join(workDir, utils.SanitizeFileName(zipFile.Filename))
	if err := c.SaveFile(zipFile, zipPath); err != nil {
		logger.ErrorContext(ctx, "Failed to save uploaded zip", "job_id", jobID, "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	promptsPath := filepath.Join(workDir, utils.SanitizeFileName(promptsFile.Filename))
	if err := c.SaveFile(promptsFile, promptsPath); err != nil {
		logger.ErrorContext(ctx, "Failed to save uploaded prompts file", "job_id", jobID, "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	logger.InfoContext(ctx, "Processing upload", "job_id", jobID, "zip", zipFile.Filename, "prompts", promptsFile.Filename)

	result, err := h.uploadService.ProcessUpload(ctx, jobID, zipPath, promptsPath)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, "Job not found")
		}
		if errors.Is(err, services.ErrInvalidState) {
			return utils.ConflictResponse(c, "Cannot replace inputs while job is processing")
		}
		logger.WarnContext(ctx, "Upload rejected", "job_id", jobID, "error", err)
		return utils.BadRequestResponse(c, err.Error())
	}

	return utils.SuccessResponse(c, result)
}

func (h *JobHandler) StartJob(c *fiber.Ctx) error {
	ctx := c.UserContext()

	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid job ID")
	}

	started, err := h.jobService.StartJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, "Job not found")
		}
		if errors.Is(err, services.ErrMissingInputs) {
			return utils.BadRequestResponse(c, "Job has no uploaded inputs")
		}
		logger.ErrorContext(ctx, "Job start failed", "job_id", jobID, "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	message := "Job started"
	if !started {
		message = "Job is already processing"
	}

	return utils.SuccessResponse(c, dto.StartJobResponse{
		JobID:   jobID,
		Started: started,
		Message: message,
	})
}

func (h *JobHandler) DeleteJob(c *fiber.Ctx) error {
	ctx := c.UserContext()

	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.BadRequestResponse(c, "Invalid job ID")
	}

	err = h.jobService.DeleteJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, "Job not found")
		}
		logger.ErrorContext(ctx, "Job deletion failed", "job_id", jobID, "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	logger.InfoContext(ctx, "Job deleted", "job_id", jobID)

	return utils.NoContentResponse(c)
}
