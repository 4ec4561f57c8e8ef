package serviceimpl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"veobatch/domain/models"
	"veobatch/domain/ports"
	"veobatch/domain/repositories"
	"veobatch/domain/services"
	"veobatch/infrastructure/redis"
	"veobatch/pkg/classify"
	"veobatch/pkg/config"
	"veobatch/pkg/logger"
	"veobatch/pkg/retrypolicy"
)

// GenerationServiceImpl ไล่ video items ของ job ทีละตัวผ่าน automation driver
// driver มี session เดียว - งานข้าม job ถูก serialize ด้วย driverMutex
type GenerationServiceImpl struct {
	jobRepo   repositories.JobRepository
	videoRepo repositories.VideoRepository
	driver    ports.AutomationDriver
	storage   services.StorageWorkflow
	publisher ports.ProgressPublisherPort
	cache     *redis.Client
	policy    retrypolicy.Policy

	pollInterval time.Duration
	maxWait      time.Duration
	outputPath   string

	// running กัน start ซ้ำใน process เดียวกัน (lock ต่อ job ไม่ใช่ flag ใน DB)
	runMutex sync.Mutex
	running  map[uuid.UUID]bool

	// driver รับได้ทีละ session
	driverMutex sync.Mutex
}

func NewGenerationService(
	jobRepo repositories.JobRepository,
	videoRepo repositories.VideoRepository,
	driver ports.AutomationDriver,
	storage services.StorageWorkflow,
	publisher ports.ProgressPublisherPort,
	cache *redis.Client,
	cfg *config.Config,
) services.GenerationService {
	return &GenerationServiceImpl{
		jobRepo:      jobRepo,
		videoRepo:    videoRepo,
		driver:       driver,
		storage:      storage,
		publisher:    publisher,
		cache:        cache,
		policy:       retrypolicy.Policy{MaxAttempts: cfg.Retry.MaxAttempts, Delay: cfg.Retry.Delay},
		pollInterval: cfg.Flow.PollInterval,
		maxWait:      cfg.Flow.MaxWait,
		outputPath:   cfg.Storage.OutputPath,
	}
}

// acquireJob จอง job ไว้กับ goroutine ที่เรียก คืน false ถ้ามีคนถืออยู่แล้ว
func (s *GenerationServiceImpl) acquireJob(jobID uuid.UUID) bool {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()

	if s.running == nil {
		s.running = make(map[uuid.UUID]bool)
	}
	if s.running[jobID] {
		return false
	}
	s.running[jobID] = true
	return true
}

func (s *GenerationServiceImpl) releaseJob(jobID uuid.UUID) {
	s.runMutex.Lock()
	delete(s.running, jobID)
	s.runMutex.Unlock()
}

// acquireRunLock กันรันซ้ำข้าม process ผ่าน redis (best effort)
// ไม่มี redis = ข้ามไป ใช้แค่ in-process guard
func (s *GenerationServiceImpl) acquireRunLock(ctx context.Context, jobID uuid.UUID) (func(), bool) {
	if s.cache == nil {
		return func() {}, true
	}

	lockKey := "veobatch:job-run:" + jobID.String()
	ok, err := s.cache.AcquireLock(ctx, lockKey, s.maxWait)
	if err != nil {
		logger.WarnContext(ctx, "Redis run lock unavailable, continuing without it", "job_id", jobID, "error", err)
		return func() {}, true
	}
	if !ok {
		return nil, false
	}

	return func() {
		if err := s.cache.ReleaseLock(context.Background(), lockKey); err != nil {
			logger.Warn("Failed to release run lock", "job_id", jobID, "error", err)
		}
	}, true
}

func (s *GenerationServiceImpl) RunJob(ctx context.Context, jobID uuid.UUID) error {
	if !s.acquireJob(jobID) {
		logger.InfoContext(ctx, "Job already running, ignoring start", "job_id", jobID)
		return services.ErrAlreadyRunning
	}
	defer s.releaseJob(jobID)

	releaseLock, ok := s.acquireRunLock(ctx, jobID)
	if !ok {
		logger.InfoContext(ctx, "Job run lock held elsewhere, ignoring start", "job_id", jobID)
		return services.ErrAlreadyRunning
	}
	defer releaseLock()

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		logger.WarnContext(ctx, "Job not found for run", "job_id", jobID)
		return services.ErrNotFound
	}

	if job.IsProcessing() {
		logger.InfoContext(ctx, "Job status already processing, ignoring start", "job_id", jobID)
		return services.ErrAlreadyRunning
	}

	if !job.HasInputs() {
		logger.WarnContext(ctx, "Job has no uploaded inputs", "job_id", jobID)
		return services.ErrMissingInputs
	}

	videos, err := s.videoRepo.GetByJobID(ctx, jobID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load videos for run", "job_id", jobID, "error", err)
		return err
	}

	queue := pendingItems(videos)
	if len(queue) == 0 && len(videos) == 0 {
		logger.WarnContext(ctx, "Job has no video records", "job_id", jobID)
		return services.ErrMissingInputs
	}

	if err := s.jobRepo.UpdateFields(ctx, jobID, map[string]interface{}{
		"status":             models.JobStatusProcessing,
		"current_processing": "",
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to mark job processing", "job_id", jobID, "error", err)
		return err
	}

	logger.InfoContext(ctx, "Starting batch run", "job_id", jobID, "pending_items", len(queue), "total_items", len(videos))

	s.driverMutex.Lock()
	defer s.driverMutex.Unlock()

	if err := s.driver.Login(ctx); err != nil {
		logger.ErrorContext(ctx, "Driver login failed, failing job", "job_id", jobID, "error", err)
		s.failJobSetup(jobID, fmt.Sprintf("automation session setup failed: %v", err))
		return err
	}
	defer func() {
		if err := s.driver.Close(context.Background()); err != nil {
			logger.Warn("Failed to close automation session", "job_id", jobID, "error", err)
		}
	}()

	for _, video := range queue {
		if ctx.Err() != nil {
			logger.InfoContext(ctx, "Run cancelled mid-batch", "job_id", jobID)
			s.markCancelled(jobID)
			return ctx.Err()
		}

		// job อาจถูกลบกลางคัน - record หายคือสัญญาณให้หยุด
		currentJob, err := s.jobRepo.GetByID(ctx, jobID)
		if err != nil {
			logger.InfoContext(ctx, "Job record gone mid-batch, stopping", "job_id", jobID)
			return nil
		}

		s.processItem(ctx, currentJob, video)
		s.refreshCounters(ctx, jobID, "")
	}

	// cancel ระหว่าง item สุดท้ายต้องไม่จบเป็น completed
	if ctx.Err() != nil {
		logger.InfoContext(ctx, "Run cancelled mid-batch", "job_id", jobID)
		s.markCancelled(jobID)
		return ctx.Err()
	}

	if err := s.jobRepo.UpdateFields(ctx, jobID, map[string]interface{}{
		"status":             models.JobStatusCompleted,
		"current_processing": "",
	}); err != nil {
		// record ลบไปแล้วก็ไม่ต้องทำอะไรต่อ
		logger.WarnContext(ctx, "Failed to finalize job status", "job_id", jobID, "error", err)
		return nil
	}

	logger.InfoContext(ctx, "Batch run finished", "job_id", jobID, "items", len(queue))
	return nil
}

func (s *GenerationServiceImpl) RegenerateVideo(ctx context.Context, videoID uuid.UUID, newPrompt string) error {
	video, err := s.videoRepo.GetByID(ctx, videoID)
	if err != nil {
		logger.WarnContext(ctx, "Video not found for regenerate", "video_id", videoID)
		return services.ErrNotFound
	}

	if err := video.ResetForRegeneration(newPrompt); err != nil {
		logger.WarnContext(ctx, "Video not in a regenerable state", "video_id", videoID, "status", video.Status)
		return services.ErrInvalidState
	}

	jobID := video.JobID

	if !s.acquireJob(jobID) {
		logger.InfoContext(ctx, "Job busy, cannot regenerate now", "job_id", jobID, "video_id", videoID)
		return services.ErrAlreadyRunning
	}
	defer s.releaseJob(jobID)

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return services.ErrNotFound
	}

	err = s.videoRepo.UpdateFields(ctx, videoID, map[string]interface{}{
		"status":                  video.Status,
		"prompt_text":             video.PromptText,
		"error_type":              "",
		"error_message":           "",
		"retry_count":             0,
		"generation_started_at":   nil,
		"generation_completed_at": nil,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to reset video for regenerate", "video_id", videoID, "error", err)
		return err
	}

	logger.InfoContext(ctx, "Regenerating video",
		"job_id", jobID,
		"video_id", videoID,
		"prompt_number", video.PromptNumber,
		"output_index", video.OutputIndex,
		"new_prompt", newPrompt != "")

	s.driverMutex.Lock()
	defer s.driverMutex.Unlock()

	if err := s.driver.Login(ctx); err != nil {
		logger.ErrorContext(ctx, "Driver login failed for regenerate", "video_id", videoID, "error", err)
		s.markItemFailed(ctx, video, models.ErrorTypeUnknown, fmt.Sprintf("automation session setup failed: %v", err))
		s.refreshCounters(ctx, jobID, "")
		return err
	}
	defer func() {
		if err := s.driver.Close(context.Background()); err != nil {
			logger.Warn("Failed to close automation session", "video_id", videoID, "error", err)
		}
	}()

	s.processItem(ctx, job, video)
	s.refreshCounters(ctx, jobID, "")
	return nil
}

// pendingItems กรองเอาเฉพาะ queued เรียงตาม prompt_number, output_index
// และ dedup ด้วย (prompt_number, output_index) กัน re-entrant run ประมวลผลซ้ำ
func pendingItems(videos []*models.Video) []*models.Video {
	seen := make(map[[2]int]bool)
	queue := make([]*models.Video, 0, len(videos))

	for _, video := range videos {
		if video.Status != models.VideoStatusQueued {
			continue
		}
		key := [2]int{video.PromptNumber, video.OutputIndex}
		if seen[key] {
			continue
		}
		seen[key] = true
		queue = append(queue, video)
	}

	return queue
}

// processItem รัน pipeline ของ item เดียว: submit → poll → download → store
// ทุก failure จบใน item นี้ - batch ทำต่อเสมอ
func (s *GenerationServiceImpl) processItem(ctx context.Context, job *models.Job, video *models.Video) {
	now := time.Now()
	if err := video.BeginGeneration(now); err != nil {
		logger.WarnContext(ctx, "Skipping item, unexpected state", "video_id", video.ID, "status", video.Status, "error", err)
		return
	}

	err := s.videoRepo.UpdateFields(ctx, video.ID, map[string]interface{}{
		"status":                models.VideoStatusGenerating,
		"generation_started_at": now,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to persist generating state", "video_id", video.ID, "error", err)
		return
	}

	s.refreshCounters(ctx, job.ID, video.ImageFilename)

	imagePath := filepath.Join(job.ImagesFolderPath, video.ImageFilename)

	for {
		errMsg, attemptErr := s.attemptGeneration(ctx, job, video, imagePath)
		if attemptErr == nil {
			s.publishItem(ctx, job, video)
			return
		}

		// cancel กลางทางไม่ใช่ failure ของ item - ปล่อยไว้ให้ caller ปิด job
		if ctx.Err() != nil {
			return
		}

		errType := classify.Classify(errMsg)
		decision := s.policy.Decide(errType, video.RetryCount)

		if !decision.Retry {
			s.markItemFailed(ctx, video, errType, errMsg)
			s.publishItem(ctx, job, video)
			return
		}

		if err := video.RecordRetry(errType, errMsg); err != nil {
			logger.WarnContext(ctx, "Retry bookkeeping failed", "video_id", video.ID, "error", err)
			s.markItemFailed(ctx, video, errType, errMsg)
			s.publishItem(ctx, job, video)
			return
		}

		err = s.videoRepo.UpdateFields(ctx, video.ID, map[string]interface{}{
			"retry_count":   video.RetryCount,
			"error_type":    errType,
			"error_message": errMsg,
		})
		if err != nil {
			logger.WarnContext(ctx, "Failed to persist retry count", "video_id", video.ID, "error", err)
		}

		logger.InfoContext(ctx, "Retrying item after backoff",
			"video_id", video.ID,
			"error_type", errType,
			"attempt", video.RetryCount,
			"delay", decision.Delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(decision.Delay):
		}
	}
}

// attemptGeneration หนึ่งรอบเต็มของ item: submit, poll จนจบ, download, store
// คืนข้อความ error ดิบ (สำหรับ classifier) กับ error เมื่อรอบนี้ fail
func (s *GenerationServiceImpl) attemptGeneration(ctx context.Context, job *models.Job, video *models.Video, imagePath string) (string, error) {
	if err := s.driver.Submit(ctx, imagePath, video.PromptText); err != nil {
		logger.WarnContext(ctx, "Submit failed", "video_id", video.ID, "error", err)
		return err.Error(), err
	}

	errMsg, err := s.waitForCompletion(ctx, video)
	if err != nil {
		return errMsg, err
	}

	outputDir := filepath.Join(s.outputPath, job.ID.String())
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err.Error(), err
	}
	localPath := filepath.Join(outputDir, video.ID.String()+".mp4")

	if err := s.driver.Download(ctx, localPath); err != nil {
		logger.WarnContext(ctx, "Download failed", "video_id", video.ID, "error", err)
		return fmt.Sprintf("download failed: %v", err), err
	}

	stored, err := s.storage.Store(ctx, localPath, job.ID, video.ID)
	if err != nil {
		logger.ErrorContext(ctx, "Storage handoff failed", "video_id", video.ID, "error", err)
		return fmt.Sprintf("storage handoff failed: %v", err), err
	}

	completedAt := time.Now()
	if err := video.MarkCompleted(completedAt); err != nil {
		return err.Error(), err
	}

	err = s.videoRepo.UpdateFields(ctx, video.ID, map[string]interface{}{
		"status":                  models.VideoStatusCompleted,
		"generation_completed_at": completedAt,
		"local_path":              localPath,
		"fast_url":                stored.FastURL,
		"fast_key":                stored.FastKey,
		"fast_expires_at":         stored.FastExpiresAt,
		"durable_ref":             stored.DurableRef,
		"durable_url":             stored.DurableURL,
		"error_type":              "",
		"error_message":           "",
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to persist completed state", "video_id", video.ID, "error", err)
		return err.Error(), err
	}

	logger.InfoContext(ctx, "Item completed",
		"video_id", video.ID,
		"prompt_number", video.PromptNumber,
		"output_index", video.OutputIndex,
		"retries", video.RetryCount)

	return "", nil
}

// waitForCompletion poll driver ที่คาบคงที่จนกว่าจะ completed/error หรือเกิน maxWait
func (s *GenerationServiceImpl) waitForCompletion(ctx context.Context, video *models.Video) (string, error) {
	deadline := time.Now().Add(s.maxWait)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "cancelled while waiting for generation", ctx.Err()
		case <-ticker.C:
		}

		status, err := s.driver.PollStatus(ctx)
		if err != nil {
			// poll พลาดครั้งเดียวไม่ถือว่า generation fail
			logger.WarnContext(ctx, "Poll failed, will retry", "video_id", video.ID, "error", err)
			if time.Now().After(deadline) {
				return fmt.Sprintf("generation status unavailable: %v", err), err
			}
			continue
		}

		switch status.State {
		case ports.GenerationCompleted:
			return "", nil
		case ports.GenerationError:
			msg := status.ErrorMessage
			if msg == "" {
				msg = "generation failed without error message"
			}
			return msg, fmt.Errorf("generation failed: %s", msg)
		}

		if time.Now().After(deadline) {
			msg := fmt.Sprintf("generation timed out after %s", s.maxWait)
			return msg, fmt.Errorf("%s", msg)
		}
	}
}

func (s *GenerationServiceImpl) markItemFailed(ctx context.Context, video *models.Video, errType models.ErrorType, errMsg string) {
	if err := video.MarkFailed(errType, errMsg); err != nil {
		logger.WarnContext(ctx, "Cannot mark item failed", "video_id", video.ID, "status", video.Status, "error", err)
		return
	}

	err := s.videoRepo.UpdateFields(ctx, video.ID, map[string]interface{}{
		"status":        models.VideoStatusFailed,
		"error_type":    errType,
		"error_message": errMsg,
		"retry_count":   video.RetryCount,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to persist failed state", "video_id", video.ID, "error", err)
		return
	}

	logger.WarnContext(ctx, "Item failed",
		"video_id", video.ID,
		"prompt_number", video.PromptNumber,
		"output_index", video.OutputIndex,
		"error_type", errType,
		"retries", video.RetryCount)
}

// refreshCounters คำนวณ counters ใหม่จาก DB แล้ว persist
// เรียกหลังทุก item resolve เพื่อให้ progress query ได้สดเสมอ
func (s *GenerationServiceImpl) refreshCounters(ctx context.Context, jobID uuid.UUID, currentProcessing string) {
	completed, err := s.videoRepo.CountByJobAndStatus(ctx, jobID, models.VideoStatusCompleted)
	if err != nil {
		logger.WarnContext(ctx, "Failed to count completed videos", "job_id", jobID, "error", err)
		return
	}
	failed, err := s.videoRepo.CountByJobAndStatus(ctx, jobID, models.VideoStatusFailed)
	if err != nil {
		logger.WarnContext(ctx, "Failed to count failed videos", "job_id", jobID, "error", err)
		return
	}

	err = s.jobRepo.UpdateFields(ctx, jobID, map[string]interface{}{
		"completed_videos":   completed,
		"failed_videos":      failed,
		"current_processing": currentProcessing,
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to persist job counters", "job_id", jobID, "error", err)
		return
	}

	// cache invalidation - progress snapshot เปลี่ยนแล้ว
	if s.cache != nil {
		if err := s.cache.Del(ctx, "veobatch:job:"+jobID.String()); err != nil {
			logger.Debug("Failed to invalidate job cache", "job_id", jobID, "error", err)
		}
	}
}

// publishItem ยิง progress event หลัง item resolve (best effort)
func (s *GenerationServiceImpl) publishItem(ctx context.Context, job *models.Job, video *models.Video) {
	if s.publisher == nil {
		return
	}

	completed, _ := s.videoRepo.CountByJobAndStatus(ctx, job.ID, models.VideoStatusCompleted)
	failed, _ := s.videoRepo.CountByJobAndStatus(ctx, job.ID, models.VideoStatusFailed)

	event := &ports.JobProgressEvent{
		JobID:             job.ID.String(),
		VideoID:           video.ID.String(),
		ImageFilename:     video.ImageFilename,
		PromptNumber:      video.PromptNumber,
		OutputIndex:       video.OutputIndex,
		VideoStatus:       string(video.Status),
		ErrorType:         string(video.ErrorType),
		CompletedVideos:   int(completed),
		FailedVideos:      int(failed),
		ExpectedVideos:    job.ExpectedVideos,
		CurrentProcessing: video.ImageFilename,
	}

	if err := s.publisher.PublishProgress(ctx, event); err != nil {
		logger.DebugContext(ctx, "Progress publish failed", "job_id", job.ID, "video_id", video.ID, "error", err)
	}
}

// failJobSetup ปิด job เป็น failed เมื่อ setup (login/session) พัง
func (s *GenerationServiceImpl) failJobSetup(jobID uuid.UUID, reason string) {
	ctx := context.Background()

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return
	}
	job.AppendError(reason)

	err = s.jobRepo.UpdateFields(ctx, jobID, map[string]interface{}{
		"status":             models.JobStatusFailed,
		"current_processing": "",
		"error_summary":      job.ErrorSummary,
	})
	if err != nil {
		logger.Error("Failed to persist setup failure", "job_id", jobID, "error", err)
	}
}

func (s *GenerationServiceImpl) markCancelled(jobID uuid.UUID) {
	ctx := context.Background()

	err := s.jobRepo.UpdateFields(ctx, jobID, map[string]interface{}{
		"status":             models.JobStatusCancelled,
		"current_processing": "",
	})
	if err != nil {
		logger.Warn("Failed to persist cancelled status", "job_id", jobID, "error", err)
	}
}
