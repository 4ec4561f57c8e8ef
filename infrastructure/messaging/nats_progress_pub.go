package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"veobatch/domain/ports"
	natspkg "veobatch/infrastructure/nats"
)

// progressMessage wire format บน NATS
// ⚠️ โครงสร้างนี้ต้องตรงกับ dashboard consumer
type progressMessage struct {
	JobID             string `json:"job_id"`
	VideoID           string `json:"video_id"`
	ImageFilename     string `json:"image_filename"`
	PromptNumber      int    `json:"prompt_number"`
	OutputIndex       int    `json:"output_index"`
	VideoStatus       string `json:"video_status"`
	ErrorType         string `json:"error_type,omitempty"`
	CompletedVideos   int    `json:"completed_videos"`
	FailedVideos      int    `json:"failed_videos"`
	ExpectedVideos    int    `json:"expected_videos"`
	CurrentProcessing string `json:"current_processing,omitempty"`
}

// NATSProgressPublisher implements ProgressPublisherPort using NATS Pub/Sub
type NATSProgressPublisher struct {
	conn *nats.Conn
}

// NewNATSProgressPublisher สร้าง ProgressPublisherPort adapter สำหรับ NATS
func NewNATSProgressPublisher(conn *nats.Conn) ports.ProgressPublisherPort {
	return &NATSProgressPublisher{
		conn: conn,
	}
}

// PublishProgress ส่ง event หนึ่ง item ผ่าน NATS Pub/Sub
// Subject: progress.jobs.{jobID}
func (p *NATSProgressPublisher) PublishProgress(ctx context.Context, event *ports.JobProgressEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.JobID == "" {
		return fmt.Errorf("job_id is required")
	}

	msg := &progressMessage{
		JobID:             event.JobID,
		VideoID:           event.VideoID,
		ImageFilename:     event.ImageFilename,
		PromptNumber:      event.PromptNumber,
		OutputIndex:       event.OutputIndex,
		VideoStatus:       event.VideoStatus,
		ErrorType:         event.ErrorType,
		CompletedVideos:   event.CompletedVideos,
		FailedVideos:      event.FailedVideos,
		ExpectedVideos:    event.ExpectedVideos,
		CurrentProcessing: event.CurrentProcessing,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}

	subject := natspkg.SubjectJobProgressPrefix + event.JobID
	return p.conn.Publish(subject, data)
}
