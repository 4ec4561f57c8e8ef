package services

import (
	"context"

	"github.com/google/uuid"
	"veobatch/domain/dto"
	"veobatch/domain/models"
)

type JobService interface {
	CreateJob(ctx context.Context, req *dto.CreateJobRequest) (*models.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// ListJobs ใหม่สุดก่อน filter ด้วย status ได้
	ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]*models.Job, int64, error)
	// StartJob spawn การรันใน background
	// started=false เมื่อ job รันอยู่แล้ว (no-op ไม่ใช่ error)
	StartJob(ctx context.Context, id uuid.UUID) (started bool, err error)
	// DeleteJob ลบ job + videos + ไฟล์ที่อัปโหลด ปลอดภัยแม้ run กำลัง in-flight
	DeleteJob(ctx context.Context, id uuid.UUID) error
}

// UploadService รับ zip รูป + prompt file แล้ว validate ให้ index ตรงกันเป๊ะ
type UploadService interface {
	// ProcessUpload extract + parse + validate แล้วสร้าง video rows ทั้ง batch
	ProcessUpload(ctx context.Context, jobID uuid.UUID, imagesZipPath, promptsFilePath string) (*dto.UploadResult, error)
}
