package services

import (
	"context"
	"io"

	"github.com/google/uuid"
	"veobatch/domain/models"
)

type VideoService interface {
	GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Video, error)
	// SetSelected ติ๊ก/เอาออก ว่า user เลือก variant นี้
	SetSelected(ctx context.Context, id uuid.UUID, selected bool) error
	// BulkDownload เขียน zip archive ของ videos ที่ขอลง w
	// resolution เลือกไฟล์ 4K ถ้า upscale แล้ว ไม่งั้น fallback 720p
	BulkDownload(ctx context.Context, videoIDs []uuid.UUID, resolution string, w io.Writer) error
}
