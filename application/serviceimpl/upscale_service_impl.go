package serviceimpl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"veobatch/domain/models"
	"veobatch/domain/ports"
	"veobatch/domain/repositories"
	"veobatch/domain/services"
	"veobatch/pkg/config"
	"veobatch/pkg/logger"
	"veobatch/pkg/tasks"
)

// UpscaleServiceImpl รัน batch upscale ใน background
// task state อยู่ใน memory - client poll ผ่าน GetStatus
type UpscaleServiceImpl struct {
	videoRepo repositories.VideoRepository
	upscaler  ports.UpscalerPort
	storage   services.StorageWorkflow
	backend   ports.StorageBackend
	store     *tasks.Store

	tempPath      string
	defaultPreset string
}

func NewUpscaleService(
	videoRepo repositories.VideoRepository,
	upscaler ports.UpscalerPort,
	storage services.StorageWorkflow,
	backend ports.StorageBackend,
	store *tasks.Store,
	cfg *config.Config,
) services.UpscaleService {
	return &UpscaleServiceImpl{
		videoRepo:     videoRepo,
		upscaler:      upscaler,
		storage:       storage,
		backend:       backend,
		store:         store,
		tempPath:      cfg.Storage.TempPath,
		defaultPreset: cfg.Upscale.DefaultPreset,
	}
}

func (s *UpscaleServiceImpl) CreateTask(ctx context.Context, videoIDs []uuid.UUID, preset string) (string, error) {
	if preset == "" {
		preset = s.defaultPreset
	}
	if !ports.ValidPreset(preset) {
		return "", fmt.Errorf("unknown quality preset: %s", preset)
	}

	// validate ทั้งชุดก่อนรับงาน จะได้ reject ตั้งแต่ตอน create
	ids := make([]string, 0, len(videoIDs))
	for _, id := range videoIDs {
		video, err := s.videoRepo.GetByID(ctx, id)
		if err != nil {
			logger.WarnContext(ctx, "Upscale request references unknown video", "video_id", id)
			return "", services.ErrNotFound
		}
		if !video.IsCompleted() {
			logger.WarnContext(ctx, "Upscale request references incomplete video", "video_id", id, "status", video.Status)
			return "", services.ErrInvalidState
		}
		ids = append(ids, id.String())
	}

	taskID := s.store.Create(ids, preset)

	logger.InfoContext(ctx, "Upscale task created", "task_id", taskID, "videos", len(videoIDs), "preset", preset)

	go s.runBatch(taskID, videoIDs, ports.QualityPreset(preset))

	return taskID, nil
}

func (s *UpscaleServiceImpl) GetStatus(taskID string) (*tasks.UpscaleTask, error) {
	snapshot, ok := s.store.Get(taskID)
	if !ok {
		return nil, services.ErrNotFound
	}
	return &snapshot, nil
}

// runBatch ทำทีละ item จนหมดชุด item ที่ fail ไม่หยุด batch
func (s *UpscaleServiceImpl) runBatch(taskID string, videoIDs []uuid.UUID, preset ports.QualityPreset) {
	ctx := context.Background()
	total := len(videoIDs)

	s.store.Start(taskID)
	s.store.AppendLog(taskID, "info", fmt.Sprintf("Starting upscale of %d videos (preset: %s)", total, preset))

	workDir, err := os.MkdirTemp(s.tempPath, "upscale-")
	if err != nil {
		s.store.AppendLog(taskID, "error", fmt.Sprintf("Failed to create work directory: %v", err))
		for range videoIDs {
			s.store.RecordFailure(taskID)
		}
		s.store.Finish(taskID)
		return
	}
	defer os.RemoveAll(workDir)

	for i, videoID := range videoIDs {
		s.store.Advance(taskID, i, total, videoID.String())

		if err := s.upscaleOne(ctx, taskID, videoID, preset, workDir); err != nil {
			s.store.RecordFailure(taskID)
			s.store.AppendLog(taskID, "error", fmt.Sprintf("Video %s: %v", videoID, err))
			logger.Warn("Upscale item failed", "task_id", taskID, "video_id", videoID, "error", err)
			continue
		}

		s.store.RecordSuccess(taskID)
	}

	s.store.Finish(taskID)

	snapshot, _ := s.store.Get(taskID)
	logger.Info("Upscale task finished",
		"task_id", taskID,
		"status", snapshot.Status,
		"completed", snapshot.CompletedCount,
		"failed", snapshot.FailedCount)
}

func (s *UpscaleServiceImpl) upscaleOne(ctx context.Context, taskID string, videoID uuid.UUID, preset ports.QualityPreset, workDir string) error {
	video, err := s.videoRepo.GetByID(ctx, videoID)
	if err != nil {
		return fmt.Errorf("video no longer exists")
	}

	// upscale ไปแล้วถือว่าสำเร็จ ไม่ต้องเผา ffmpeg ซ้ำ
	if video.Upscaled {
		s.store.AppendLog(taskID, "info", fmt.Sprintf("Video %s already upscaled, skipping", videoID))
		return nil
	}

	sourcePath, err := s.fetchSource(ctx, video, workDir)
	if err != nil {
		return fmt.Errorf("source fetch failed: %v", err)
	}

	outputPath := filepath.Join(workDir, videoID.String()+"-4k.mp4")

	s.store.AppendLog(taskID, "info", fmt.Sprintf("Upscaling video %s to 4K", videoID))

	if err := s.upscaler.Upscale(ctx, sourcePath, outputPath, preset); err != nil {
		return fmt.Errorf("ffmpeg failed: %v", err)
	}

	stored, err := s.storage.StoreUpscaled(ctx, outputPath, video.JobID, video.ID)
	if err != nil {
		return fmt.Errorf("storage handoff failed: %v", err)
	}

	now := time.Now()
	err = s.videoRepo.UpdateFields(ctx, video.ID, map[string]interface{}{
		"upscaled":             true,
		"upscaled_fast_url":    stored.FastURL,
		"upscaled_durable_ref": stored.DurableRef,
		"upscale_completed_at": now,
		"resolution":           models.Resolution4K,
	})
	if err != nil {
		return fmt.Errorf("failed to persist upscale result: %v", err)
	}

	s.store.AppendLog(taskID, "info", fmt.Sprintf("Video %s upscaled", videoID))
	return nil
}

// fetchSource หาไฟล์ต้นทาง 720p: local → fast tier → durable tier
func (s *UpscaleServiceImpl) fetchSource(ctx context.Context, video *models.Video, workDir string) (string, error) {
	if video.LocalPath != "" {
		if _, err := os.Stat(video.LocalPath); err == nil {
			return video.LocalPath, nil
		}
	}

	dest := filepath.Join(workDir, video.ID.String()+"-source.mp4")

	if video.FastKey != "" {
		path, err := s.fetchFast(ctx, video.FastKey, dest)
		if err == nil {
			return path, nil
		}
		logger.Debug("Fast tier source unavailable, falling back to durable", "video_id", video.ID, "error", err)
	}

	if video.DurableRef == "" {
		return "", fmt.Errorf("no retrievable copy")
	}

	if err := s.backend.GetDurable(ctx, video.DurableRef, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (s *UpscaleServiceImpl) fetchFast(ctx context.Context, key, dest string) (string, error) {
	reader, err := s.backend.GetFast(ctx, key)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	file, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return "", err
	}
	return dest, nil
}
