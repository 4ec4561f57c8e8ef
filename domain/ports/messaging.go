package ports

import "context"

// JobProgressEvent - Plain struct (ไม่มี NATS dependency)
// ยิงหลังแต่ละ video item resolve เพื่อให้ dashboard ภายนอก subscribe ได้
type JobProgressEvent struct {
	JobID             string
	VideoID           string
	ImageFilename     string
	PromptNumber      int
	OutputIndex       int
	VideoStatus       string // completed, failed, generating
	ErrorType         string
	CompletedVideos   int
	FailedVideos      int
	ExpectedVideos    int
	CurrentProcessing string
}

// ProgressPublisherPort - Interface สำหรับส่ง progress event
// optional: ถ้าไม่มี NATS ระบบทำงานต่อได้ปกติ
type ProgressPublisherPort interface {
	// PublishProgress ส่ง event หนึ่ง item
	PublishProgress(ctx context.Context, event *JobProgressEvent) error
}
