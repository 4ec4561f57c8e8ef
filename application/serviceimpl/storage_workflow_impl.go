package serviceimpl

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"veobatch/domain/ports"
	"veobatch/domain/repositories"
	"veobatch/domain/services"
	"veobatch/pkg/logger"
)

const videoContentType = "video/mp4"

// StorageWorkflowImpl ลำดับการเขียนตายตัว:
// fast tier ก่อน (UI ได้ URL ทันที) แล้วค่อย durable
// fast object มีอายุ ttl แล้วถูกลบทิ้งใน background
type StorageWorkflowImpl struct {
	backend   ports.StorageBackend
	videoRepo repositories.VideoRepository
	ttl       time.Duration
}

func NewStorageWorkflow(backend ports.StorageBackend, videoRepo repositories.VideoRepository, ttl time.Duration) services.StorageWorkflow {
	return &StorageWorkflowImpl{
		backend:   backend,
		videoRepo: videoRepo,
		ttl:       ttl,
	}
}

func (s *StorageWorkflowImpl) Store(ctx context.Context, artifactPath string, jobID, videoID uuid.UUID) (*services.StoreResult, error) {
	key := fmt.Sprintf("jobs/%s/%s.mp4", jobID, videoID)

	result, err := s.dualWrite(ctx, artifactPath, key)
	if err != nil {
		return nil, err
	}

	s.scheduleFastExpiry(key, videoID, false)

	return result, nil
}

func (s *StorageWorkflowImpl) StoreUpscaled(ctx context.Context, artifactPath string, jobID, videoID uuid.UUID) (*services.StoreResult, error) {
	key := fmt.Sprintf("jobs/%s/%s-4k.mp4", jobID, videoID)

	result, err := s.dualWrite(ctx, artifactPath, key)
	if err != nil {
		return nil, err
	}

	s.scheduleFastExpiry(key, videoID, true)

	return result, nil
}

func (s *StorageWorkflowImpl) dualWrite(ctx context.Context, artifactPath, key string) (*services.StoreResult, error) {
	info, err := os.Stat(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("artifact not readable: %v", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("artifact is empty: %s", artifactPath)
	}

	fastFile, err := os.Open(artifactPath)
	if err != nil {
		return nil, err
	}
	fastURL, err := s.backend.PutFast(ctx, fastFile, info.Size(), key, videoContentType)
	fastFile.Close()
	if err != nil {
		logger.ErrorContext(ctx, "Fast tier write failed", "key", key, "error", err)
		return nil, fmt.Errorf("fast tier write failed: %v", err)
	}

	durableFile, err := os.Open(artifactPath)
	if err != nil {
		return nil, err
	}
	durable, err := s.backend.PutDurable(ctx, durableFile, info.Size(), key, videoContentType)
	durableFile.Close()
	if err != nil {
		logger.ErrorContext(ctx, "Durable tier write failed", "key", key, "error", err)
		return nil, fmt.Errorf("durable tier write failed: %v", err)
	}

	logger.InfoContext(ctx, "Artifact stored on both tiers",
		"key", key,
		"size", info.Size(),
		"provider", s.backend.GetProviderName())

	return &services.StoreResult{
		FastURL:       fastURL,
		FastKey:       key,
		FastExpiresAt: time.Now().Add(s.ttl),
		DurableRef:    durable.Ref,
		DurableURL:    durable.URL,
	}, nil
}

// scheduleFastExpiry ตั้งเวลาลบ fast object หลัง TTL
// พลาดตรงไหนก็แค่ log - fast tier เป็นแค่ cache, sweep ตามเก็บทีหลังได้
func (s *StorageWorkflowImpl) scheduleFastExpiry(key string, videoID uuid.UUID, upscaled bool) {
	time.AfterFunc(s.ttl, func() {
		ctx := context.Background()

		if err := s.backend.DeleteFast(ctx, key); err != nil {
			logger.Error("Fast tier expiry delete failed", "key", key, "video_id", videoID, "error", err)
			return
		}

		var err error
		if upscaled {
			err = s.videoRepo.UpdateFields(ctx, videoID, map[string]interface{}{
				"upscaled_fast_url": "",
			})
		} else {
			err = s.videoRepo.ClearFastTier(ctx, videoID)
		}
		if err != nil {
			logger.Error("Failed to clear fast tier fields after expiry", "video_id", videoID, "error", err)
			return
		}

		logger.Debug("Fast tier object expired", "key", key, "video_id", videoID)
	})
}

// SweepExpired เก็บกวาด fast objects ที่เลย TTL แต่ in-process timer หายไปแล้ว
// (restart ระหว่างรอ TTL) เรียกจาก scheduler เป็นรอบ
func (s *StorageWorkflowImpl) SweepExpired(ctx context.Context) error {
	videos, err := s.videoRepo.GetExpiredFast(ctx, time.Now())
	if err != nil {
		logger.ErrorContext(ctx, "Failed to query expired fast objects", "error", err)
		return err
	}

	if len(videos) == 0 {
		return nil
	}

	swept := 0
	for _, video := range videos {
		if err := s.backend.DeleteFast(ctx, video.FastKey); err != nil {
			logger.WarnContext(ctx, "Sweep delete failed, will retry next round", "key", video.FastKey, "video_id", video.ID, "error", err)
			continue
		}
		if err := s.videoRepo.ClearFastTier(ctx, video.ID); err != nil {
			logger.WarnContext(ctx, "Failed to clear fast tier fields", "video_id", video.ID, "error", err)
			continue
		}
		swept++
	}

	logger.InfoContext(ctx, "Fast tier sweep finished", "expired", len(videos), "swept", swept)
	return nil
}
