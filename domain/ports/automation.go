package ports

import "context"

// GenerationState ผลจากการ poll driver หนึ่งครั้ง
type GenerationState string

const (
	GenerationPending   GenerationState = "pending"
	GenerationCompleted GenerationState = "completed"
	GenerationError     GenerationState = "error"
)

// GenerationStatus สถานะปัจจุบันของ generation ที่ driver รายงาน
type GenerationStatus struct {
	State        GenerationState
	ErrorMessage string // ข้อความดิบจากหน้าเว็บ driver ส่งต่อให้ classifier
}

// AutomationDriver คือ browser-automation sidecar ที่คลิก/อัปโหลดบนเว็บ generation
// อาจช้าและ fail ด้วยข้อความอะไรก็ได้ - core ไม่รู้จักเว็บปลายทาง
// session เดียวใช้ได้ทีละ job เท่านั้น
type AutomationDriver interface {
	// Login เปิด session ใหม่สำหรับ job หนึ่งรอบ
	// fail ที่นี่ = setup failure ทั้ง job
	Login(ctx context.Context) error

	// Submit ส่งภาพ + prompt เข้า generation queue ของเว็บ
	Submit(ctx context.Context, imagePath, promptText string) error

	// PollStatus อ่านสถานะ generation ปัจจุบัน
	PollStatus(ctx context.Context) (*GenerationStatus, error)

	// Download ดึงไฟล์วิดีโอที่ generate เสร็จลง outputPath
	Download(ctx context.Context, outputPath string) error

	// Close ปิด session คืน browser resource
	Close(ctx context.Context) error
}
