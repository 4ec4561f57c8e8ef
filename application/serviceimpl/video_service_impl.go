package serviceimpl

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"veobatch/domain/models"
	"veobatch/domain/ports"
	"veobatch/domain/repositories"
	"veobatch/domain/services"
	"veobatch/pkg/logger"
)

type VideoServiceImpl struct {
	videoRepo repositories.VideoRepository
	backend   ports.StorageBackend
	tempPath  string
}

func NewVideoService(videoRepo repositories.VideoRepository, backend ports.StorageBackend, tempPath string) services.VideoService {
	return &VideoServiceImpl{
		videoRepo: videoRepo,
		backend:   backend,
		tempPath:  tempPath,
	}
}

func (s *VideoServiceImpl) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	video, err := s.videoRepo.GetByID(ctx, id)
	if err != nil {
		return nil, services.ErrNotFound
	}
	return video, nil
}

func (s *VideoServiceImpl) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Video, error) {
	videos, err := s.videoRepo.GetByJobID(ctx, jobID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list videos", "job_id", jobID, "error", err)
		return nil, err
	}
	return videos, nil
}

func (s *VideoServiceImpl) SetSelected(ctx context.Context, id uuid.UUID, selected bool) error {
	_, err := s.videoRepo.GetByID(ctx, id)
	if err != nil {
		logger.WarnContext(ctx, "Video not found for select", "video_id", id)
		return services.ErrNotFound
	}

	err = s.videoRepo.UpdateFields(ctx, id, map[string]interface{}{
		"selected": selected,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to update selection", "video_id", id, "error", err)
		return err
	}

	logger.InfoContext(ctx, "Video selection updated", "video_id", id, "selected", selected)
	return nil
}

// BulkDownload เขียน zip ของ videos ที่ขอลง w
// เลือกต้นทางถูกสุดก่อน: ไฟล์ local → fast tier → durable tier
// item ที่ยังไม่ completed ถูกข้าม ไม่ทำให้ archive ทั้งก้อน fail
func (s *VideoServiceImpl) BulkDownload(ctx context.Context, videoIDs []uuid.UUID, resolution string, w io.Writer) error {
	archive := zip.NewWriter(w)

	written := 0
	for _, id := range videoIDs {
		video, err := s.videoRepo.GetByID(ctx, id)
		if err != nil {
			logger.WarnContext(ctx, "Skipping unknown video in bulk download", "video_id", id)
			continue
		}

		if !video.IsCompleted() {
			logger.WarnContext(ctx, "Skipping incomplete video in bulk download", "video_id", id, "status", video.Status)
			continue
		}

		if err := s.addToArchive(ctx, archive, video, resolution); err != nil {
			logger.WarnContext(ctx, "Failed to add video to archive", "video_id", id, "error", err)
			continue
		}
		written++
	}

	if err := archive.Close(); err != nil {
		return err
	}

	if written == 0 {
		return errors.New("no downloadable videos in selection")
	}

	logger.InfoContext(ctx, "Bulk download archive written", "requested", len(videoIDs), "written", written, "resolution", resolution)
	return nil
}

func (s *VideoServiceImpl) addToArchive(ctx context.Context, archive *zip.Writer, video *models.Video, resolution string) error {
	want4K := resolution == models.Resolution4K && video.Upscaled

	label := models.Resolution720p
	if want4K {
		label = models.Resolution4K
	}
	entryName := fmt.Sprintf("prompt_%d_output_%d_%s.mp4", video.PromptNumber, video.OutputIndex, label)

	entry, err := archive.Create(entryName)
	if err != nil {
		return err
	}

	localPath, fastKey, durableRef := video.BestRef(want4K)

	// ไฟล์ local จากรอบ generate ยังอยู่ก็ใช้เลย ไม่ต้องยิง network
	if localPath != "" {
		if file, err := os.Open(localPath); err == nil {
			defer file.Close()
			_, err = io.Copy(entry, file)
			return err
		}
	}

	if fastKey != "" {
		if reader, err := s.backend.GetFast(ctx, fastKey); err == nil {
			defer reader.Close()
			_, err = io.Copy(entry, reader)
			return err
		}
	}

	if durableRef == "" {
		return fmt.Errorf("video has no retrievable copy: %s", video.ID)
	}

	tempDir, err := os.MkdirTemp(s.tempPath, "bulk-download-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	tempFile := filepath.Join(tempDir, video.ID.String()+".mp4")
	if err := s.backend.GetDurable(ctx, durableRef, tempFile); err != nil {
		return fmt.Errorf("durable fetch failed: %v", err)
	}

	file, err := os.Open(tempFile)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(entry, file)
	return err
}
