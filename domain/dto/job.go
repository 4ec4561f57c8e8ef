package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateJobRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type JobFilterRequest struct {
	Status string `query:"status" validate:"omitempty,oneof=pending processing completed failed cancelled"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=200"`
}

type JobResponse struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Status            string    `json:"status"`
	TotalImages       int       `json:"totalImages"`
	TotalPrompts      int       `json:"totalPrompts"`
	ExpectedVideos    int       `json:"expectedVideos"`
	CompletedVideos   int       `json:"completedVideos"`
	FailedVideos      int       `json:"failedVideos"`
	CurrentProcessing string    `json:"currentProcessing,omitempty"`
	Progress          float64   `json:"progress"` // 0-1
	ErrorSummary      []string  `json:"errorSummary,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Total int64         `json:"total"`
}

// UploadResult สรุปผล upload + validation
type UploadResult struct {
	JobID          uuid.UUID `json:"jobId"`
	TotalImages    int       `json:"totalImages"`
	TotalPrompts   int       `json:"totalPrompts"`
	ExpectedVideos int       `json:"expectedVideos"`
}

// StartJobResponse ผลจากสั่ง start
type StartJobResponse struct {
	JobID   uuid.UUID `json:"jobId"`
	Started bool      `json:"started"` // false = no-op เพราะรันอยู่แล้ว
	Message string    `json:"message"`
}
