package services

import (
	"context"

	"github.com/google/uuid"
	"veobatch/pkg/tasks"
)

// UpscaleService จัดการ batch upscale แยกจาก job lifecycle
// task table อยู่ใน memory - poll ผ่าน GetStatus
type UpscaleService interface {
	// CreateTask validate videos แล้วสร้าง task + spawn batch ใน background
	CreateTask(ctx context.Context, videoIDs []uuid.UUID, preset string) (taskID string, err error)

	// GetStatus คืน read-only snapshot, ErrNotFound สำหรับ id ที่ไม่รู้จัก
	GetStatus(taskID string) (*tasks.UpscaleTask, error)
}
