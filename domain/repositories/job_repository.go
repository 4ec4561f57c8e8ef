package repositories

import (
	"context"

	"github.com/google/uuid"
	"veobatch/domain/models"
)

type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// List เรียงใหม่สุดก่อน filter ด้วย status ได้ (ว่าง = ทั้งหมด)
	List(ctx context.Context, status models.JobStatus, limit int) ([]*models.Job, error)
	// UpdateFields patch เฉพาะ field ที่ส่งมา (atomic field-level update)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error
	// Delete ลบ job พร้อม cascade videos
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
	// GetStuckProcessing ดึง jobs ที่ค้างสถานะ processing (ใช้ตอน startup recovery)
	GetStuckProcessing(ctx context.Context) ([]*models.Job, error)
}
