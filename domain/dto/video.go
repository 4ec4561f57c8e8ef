package dto

import (
	"time"

	"github.com/google/uuid"
)

type VideoResponse struct {
	ID            uuid.UUID  `json:"id"`
	JobID         uuid.UUID  `json:"jobId"`
	ImageFilename string     `json:"imageFilename"`
	PromptNumber  int        `json:"promptNumber"`
	PromptText    string     `json:"promptText"`
	OutputIndex   int        `json:"outputIndex"`
	Status        string     `json:"status"`
	ErrorType     string     `json:"errorType,omitempty"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
	RetryCount    int        `json:"retryCount"`
	FastURL       string     `json:"fastUrl,omitempty"`
	DurableURL    string     `json:"durableUrl,omitempty"`
	Upscaled      bool       `json:"upscaled"`
	Selected      bool       `json:"selected"`
	Resolution    string     `json:"resolution"`
	StartedAt     *time.Time `json:"generationStartedAt,omitempty"`
	CompletedAt   *time.Time `json:"generationCompletedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type SelectVideoRequest struct {
	Selected bool `json:"selected"`
}

type RegenerateVideoRequest struct {
	NewPrompt string `json:"newPrompt" validate:"omitempty,max=2000"`
}

type CreateUpscaleRequest struct {
	VideoIDs      []uuid.UUID `json:"videoIds" validate:"required,min=1,dive,required"`
	QualityPreset string      `json:"qualityPreset" validate:"omitempty,oneof=fast balanced high"`
}

type CreateUpscaleResponse struct {
	TaskID string `json:"taskId"`
}

// BulkDownloadRequest ขอ zip archive ของ videos ที่เลือก
type BulkDownloadRequest struct {
	VideoIDs   []uuid.UUID `json:"videoIds" validate:"required,min=1,dive,required"`
	Resolution string      `json:"resolution" validate:"omitempty,oneof=720p 4K"`
}
