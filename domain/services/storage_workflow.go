package services

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StoreResult ผลจาก dual-write หนึ่ง artifact
type StoreResult struct {
	FastURL       string
	FastKey       string
	FastExpiresAt time.Time
	DurableRef    string
	DurableURL    string
}

// StorageWorkflow dual-write artifact:
// fast tier ก่อน (synchronous ต้องได้ URL ทันที) ตามด้วย durable tier
// แล้วตั้งเวลาลบ fast object หลัง TTL แบบไม่ block ใคร
type StorageWorkflow interface {
	// Store เขียน artifact ขึ้นทั้งสอง tier และ schedule fast-tier expiry
	Store(ctx context.Context, artifactPath string, jobID, videoID uuid.UUID) (*StoreResult, error)

	// StoreUpscaled เหมือน Store แต่ key แยกจากไฟล์ 720p เดิม
	StoreUpscaled(ctx context.Context, artifactPath string, jobID, videoID uuid.UUID) (*StoreResult, error)

	// SweepExpired เก็บกวาด fast objects ที่เลย TTL แต่ timer หาย (เช่นหลัง restart)
	SweepExpired(ctx context.Context) error
}
