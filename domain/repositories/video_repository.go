package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"veobatch/domain/models"
)

type VideoRepository interface {
	Create(ctx context.Context, video *models.Video) error
	// CreateBatch สร้าง video rows ทั้ง batch ตอน upload ผ่าน validation
	CreateBatch(ctx context.Context, videos []*models.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	// GetByJobID เรียงตาม prompt_number, output_index
	GetByJobID(ctx context.Context, jobID uuid.UUID) ([]*models.Video, error)
	// GetSelected ดึง videos ที่ user ติ๊กเลือกไว้
	GetSelected(ctx context.Context, jobID uuid.UUID) ([]*models.Video, error)
	// UpdateFields patch เฉพาะ field ที่ส่งมา (atomic field-level update)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteByJobID ล้าง video rows ทั้งชุดของ job - ใช้ตอน upload inputs ใหม่
	// หนึ่ง (prompt, output_index) ต้องมี row เดียวเสมอ
	DeleteByJobID(ctx context.Context, jobID uuid.UUID) error
	// CountByJobAndStatus นับ videos ของ job ตาม status
	CountByJobAndStatus(ctx context.Context, jobID uuid.UUID, status models.VideoStatus) (int64, error)
	// GetExpiredFast ดึง videos ที่ fast_expires_at ผ่านไปแล้วแต่ fast_key ยังไม่ถูกล้าง
	// สำหรับ sweep เก็บกวาดหลัง restart
	GetExpiredFast(ctx context.Context, now time.Time) ([]*models.Video, error)
	// ClearFastTier ล้าง fast_url/fast_key/fast_expires_at หลังลบ object สำเร็จ
	ClearFastTier(ctx context.Context, id uuid.UUID) error
	// GetStuckGenerating ดึง videos ที่ค้าง generating นานเกิน threshold
	GetStuckGenerating(ctx context.Context, threshold time.Time) ([]*models.Video, error)
}
