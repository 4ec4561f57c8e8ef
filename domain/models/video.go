package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VideoStatus สถานะของ video หนึ่ง variant
type VideoStatus string

const (
	VideoStatusQueued     VideoStatus = "queued"     // รอถึงคิว
	VideoStatusGenerating VideoStatus = "generating" // ส่งให้ driver แล้ว กำลังรอผล
	VideoStatusCompleted  VideoStatus = "completed"  // ได้ไฟล์ + ผ่าน storage handoff แล้ว
	VideoStatusFailed     VideoStatus = "failed"     // terminal error หรือ retry หมด
)

// ErrorType หมวดของ failure จาก classifier
type ErrorType string

const (
	ErrorTypeHighDemand      ErrorType = "HIGH_DEMAND"      // โมเดลไม่ว่าง - retry ได้
	ErrorTypeProminentPeople ErrorType = "PROMINENT_PEOPLE" // ภาพมีบุคคลสาธารณะ - terminal
	ErrorTypePolicyViolation ErrorType = "POLICY_VIOLATION" // terminal
	ErrorTypeContentFilter   ErrorType = "CONTENT_FILTER"   // terminal
	ErrorTypeNetworkError    ErrorType = "NETWORK_ERROR"
	ErrorTypeDownloadError   ErrorType = "DOWNLOAD_ERROR"
	ErrorTypeUnknown         ErrorType = "UNKNOWN"
)

// ErrInvalidTransition เมื่อพยายามเปลี่ยนสถานะข้าม lifecycle
var ErrInvalidTransition = errors.New("invalid video state transition")

// VideoResolution ป้าย resolution ของไฟล์ปัจจุบัน
const (
	Resolution720p = "720p"
	Resolution4K   = "4K"
)

type Video struct {
	ID    uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	JobID uuid.UUID `gorm:"type:uuid;not null;index"`

	ImageFilename string `gorm:"size:255;not null"`
	PromptNumber  int    `gorm:"not null;index"`
	PromptText    string `gorm:"type:text;not null"`
	OutputIndex   int    `gorm:"not null"` // 1 หรือ 2

	Status VideoStatus `gorm:"size:20;default:'queued'"`

	GenerationStartedAt   *time.Time `gorm:"type:timestamptz"`
	GenerationCompletedAt *time.Time `gorm:"type:timestamptz"`

	ErrorType    ErrorType `gorm:"size:30"`
	ErrorMessage string    `gorm:"type:text"`
	RetryCount   int       `gorm:"default:0"`

	// Fast tier (TTL-bounded, serve ให้ UI ทันที)
	FastURL       string     `gorm:"type:text"`
	FastKey       string     `gorm:"type:text"`
	FastExpiresAt *time.Time `gorm:"type:timestamptz;index"` // สำหรับ sweep หลัง restart

	// Durable tier
	DurableRef string `gorm:"type:text"`
	DurableURL string `gorm:"type:text"`

	LocalPath string `gorm:"type:text"` // ไฟล์ที่ดาวน์โหลดจาก driver

	// Upscale tracking
	Upscaled            bool       `gorm:"default:false"`
	UpscaledFastURL     string     `gorm:"type:text"`
	UpscaledDurableRef  string     `gorm:"type:text"`
	UpscaleCompletedAt  *time.Time `gorm:"type:timestamptz"`

	Selected   bool   `gorm:"default:false"` // user เลือก variant นี้
	Resolution string `gorm:"size:10;default:'720p'"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Video) TableName() string {
	return "videos"
}

// IsTerminal ตรวจสอบว่าอยู่สถานะจบแล้ว
func (v *Video) IsTerminal() bool {
	return v.Status == VideoStatusCompleted || v.Status == VideoStatusFailed
}

// IsCompleted ตรวจสอบว่า generate สำเร็จแล้ว
func (v *Video) IsCompleted() bool {
	return v.Status == VideoStatusCompleted
}

// BeginGeneration queued → generating บันทึกเวลาเริ่ม
func (v *Video) BeginGeneration(now time.Time) error {
	if v.Status != VideoStatusQueued {
		return fmt.Errorf("%w: %s -> generating", ErrInvalidTransition, v.Status)
	}
	v.Status = VideoStatusGenerating
	v.GenerationStartedAt = &now
	return nil
}

// RecordRetry อยู่ระหว่าง generating, นับ attempt และเก็บ error ล่าสุด
// สถานะคง generating เพราะจะส่งให้ driver ใหม่
func (v *Video) RecordRetry(errType ErrorType, errMsg string) error {
	if v.Status != VideoStatusGenerating {
		return fmt.Errorf("%w: retry in %s", ErrInvalidTransition, v.Status)
	}
	v.RetryCount++
	v.ErrorType = errType
	v.ErrorMessage = errMsg
	return nil
}

// MarkCompleted generating → completed หลัง storage handoff เสร็จ
func (v *Video) MarkCompleted(now time.Time) error {
	if v.Status != VideoStatusGenerating {
		return fmt.Errorf("%w: %s -> completed", ErrInvalidTransition, v.Status)
	}
	v.Status = VideoStatusCompleted
	v.GenerationCompletedAt = &now
	return nil
}

// MarkFailed generating → failed พร้อมหมวดและข้อความ error
// attempt ที่ทำให้ fail ก็นับเข้า retry_count เหมือน attempt ที่ retry
func (v *Video) MarkFailed(errType ErrorType, errMsg string) error {
	if v.Status != VideoStatusGenerating {
		return fmt.Errorf("%w: %s -> failed", ErrInvalidTransition, v.Status)
	}
	v.Status = VideoStatusFailed
	v.RetryCount++
	v.ErrorType = errType
	v.ErrorMessage = errMsg
	return nil
}

// ResetForRegeneration กลับไป queued ได้เฉพาะจากสถานะ terminal
// ล้าง error fields + retry count และ optional เปลี่ยน prompt ใหม่
func (v *Video) ResetForRegeneration(newPrompt string) error {
	if !v.IsTerminal() {
		return fmt.Errorf("%w: regenerate in %s", ErrInvalidTransition, v.Status)
	}
	v.Status = VideoStatusQueued
	v.ErrorType = ""
	v.ErrorMessage = ""
	v.RetryCount = 0
	v.GenerationStartedAt = nil
	v.GenerationCompletedAt = nil
	if newPrompt != "" {
		v.PromptText = newPrompt
	}
	return nil
}

// CurrentResolution ป้าย resolution ที่ถูกต้องตามสถานะ upscale
func (v *Video) CurrentResolution() string {
	if v.Upscaled {
		return Resolution4K
	}
	if v.Resolution != "" {
		return v.Resolution
	}
	return Resolution720p
}

// BestRef คืน reference ที่ดีที่สุดสำหรับดาวน์โหลดตาม resolution ที่ขอ
// เรียงลำดับ local → fast → durable
func (v *Video) BestRef(want4K bool) (localPath, fastKey, durableRef string) {
	if want4K && v.Upscaled {
		return "", "", v.UpscaledDurableRef
	}
	return v.LocalPath, v.FastKey, v.DurableRef
}
