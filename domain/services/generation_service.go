package services

import (
	"context"

	"github.com/google/uuid"
)

// GenerationService คือ orchestrator ของ batch generation
// หนึ่ง job = หนึ่ง automation session รันตามลำดับ prompt
type GenerationService interface {
	// RunJob รัน batch ทั้ง job จนจบ (เรียกใน goroutine ของ job นั้น)
	// ErrNotFound ถ้า job/inputs ไม่มี, ErrAlreadyRunning ถ้ารันซ้ำ
	RunJob(ctx context.Context, jobID uuid.UUID) error

	// RegenerateVideo reset video กลับ queued แล้วรัน pipeline เฉพาะ item นั้น
	// ErrInvalidState ถ้า video ไม่อยู่สถานะ terminal
	RegenerateVideo(ctx context.Context, videoID uuid.UUID, newPrompt string) error
}
