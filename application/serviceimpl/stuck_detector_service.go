package serviceimpl

import (
	"context"
	"fmt"
	"time"

	"veobatch/domain/models"
	"veobatch/domain/repositories"
	"veobatch/pkg/logger"
	"veobatch/pkg/scheduler"
)

// StuckDetectorConfig การตั้งค่าสำหรับ stuck detector
type StuckDetectorConfig struct {
	CheckInterval     time.Duration // ทุกกี่วินาทีจะตรวจสอบ (default: 1m)
	GeneratingTimeout time.Duration // generating นานกว่านี้ถือว่า stuck (default: 45m)
	// ไม่มี QueuedTimeout - videos รอคิวใน batch ได้นานเท่าที่ต้องการ
	// batch 100 items ที่ item ละหลายนาที = หลายชั่วโมง ตั้ง timeout จะ fail item หลังๆ ฟรี
}

// StuckDetectorService ตรวจจับ videos ที่ค้างสถานะ generating
// เกิดตอน process ตายกลาง run - record ค้างไว้โดยไม่มีใครถือ
type StuckDetectorService struct {
	config    StuckDetectorConfig
	jobRepo   repositories.JobRepository
	videoRepo repositories.VideoRepository
	scheduler scheduler.EventScheduler
}

func NewStuckDetectorService(
	config StuckDetectorConfig,
	jobRepo repositories.JobRepository,
	videoRepo repositories.VideoRepository,
	eventScheduler scheduler.EventScheduler,
) *StuckDetectorService {
	service := &StuckDetectorService{
		config:    config,
		jobRepo:   jobRepo,
		videoRepo: videoRepo,
		scheduler: eventScheduler,
	}

	if service.config.CheckInterval == 0 {
		service.config.CheckInterval = time.Minute
	}
	if service.config.GeneratingTimeout == 0 {
		// ต้องมากกว่า max wait ของ orchestrator ไม่งั้นไป fail item ที่ยังรอผลอยู่
		service.config.GeneratingTimeout = 45 * time.Minute
	}

	return service
}

// RegisterDetectorJob ลงทะเบียน detector กับ scheduler
func (s *StuckDetectorService) RegisterDetectorJob() error {
	expr := fmt.Sprintf("@every %s", s.config.CheckInterval)
	return s.scheduler.AddJob("stuck_detector", expr, func() {
		ctx := context.Background()
		s.RunDetection(ctx)
	})
}

// RunDetection ตรวจ videos ที่ generation_started_at เก่าเกิน timeout
func (s *StuckDetectorService) RunDetection(ctx context.Context) {
	threshold := time.Now().Add(-s.config.GeneratingTimeout)

	stuckVideos, err := s.videoRepo.GetStuckGenerating(ctx, threshold)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to query stuck generating videos", "error", err)
		return
	}

	if len(stuckVideos) == 0 {
		return
	}

	count := 0
	for _, video := range stuckVideos {
		logger.WarnContext(ctx, "Detected stuck generating video",
			"video_id", video.ID,
			"job_id", video.JobID,
			"generation_started_at", video.GenerationStartedAt,
			"timeout", s.config.GeneratingTimeout,
		)

		errMsg := fmt.Sprintf("generation interrupted: no progress for more than %s", s.config.GeneratingTimeout)
		err := s.videoRepo.UpdateFields(ctx, video.ID, map[string]interface{}{
			"status":        models.VideoStatusFailed,
			"error_type":    models.ErrorTypeUnknown,
			"error_message": errMsg,
		})
		if err != nil {
			logger.ErrorContext(ctx, "Failed to mark stuck video as failed", "video_id", video.ID, "error", err)
			continue
		}
		count++

		s.syncJobCounters(ctx, video)
	}

	logger.InfoContext(ctx, "Stuck detection completed", "stuck_found", len(stuckVideos), "marked_failed", count)
}

// RecoverOnStartup ปิด jobs ที่ค้าง processing จาก process รอบก่อน
// เรียกครั้งเดียวตอน boot ก่อน scheduler เริ่ม
func (s *StuckDetectorService) RecoverOnStartup(ctx context.Context) {
	stuckJobs, err := s.jobRepo.GetStuckProcessing(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Startup recovery query failed", "error", err)
		return
	}

	for _, job := range stuckJobs {
		logger.WarnContext(ctx, "Recovering job stuck in processing after restart", "job_id", job.ID, "name", job.Name)

		job.AppendError("processing interrupted by restart")
		err := s.jobRepo.UpdateFields(ctx, job.ID, map[string]interface{}{
			"status":             models.JobStatusFailed,
			"current_processing": "",
			"error_summary":      job.ErrorSummary,
		})
		if err != nil {
			logger.ErrorContext(ctx, "Failed to recover stuck job", "job_id", job.ID, "error", err)
		}
	}

	if len(stuckJobs) > 0 {
		logger.InfoContext(ctx, "Startup recovery finished", "recovered_jobs", len(stuckJobs))
	}
}

// syncJobCounters ดัน failed counter ของ job ให้ตรงหลัง detector แก้สถานะ video
func (s *StuckDetectorService) syncJobCounters(ctx context.Context, video *models.Video) {
	completed, err := s.videoRepo.CountByJobAndStatus(ctx, video.JobID, models.VideoStatusCompleted)
	if err != nil {
		return
	}
	failed, err := s.videoRepo.CountByJobAndStatus(ctx, video.JobID, models.VideoStatusFailed)
	if err != nil {
		return
	}

	err = s.jobRepo.UpdateFields(ctx, video.JobID, map[string]interface{}{
		"completed_videos": completed,
		"failed_videos":    failed,
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to sync job counters", "job_id", video.JobID, "error", err)
	}
}
