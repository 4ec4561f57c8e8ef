package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus สถานะของ generation job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"    // สร้างแล้ว รอ upload หรือรอสั่ง start
	JobStatusProcessing JobStatus = "processing" // กำลัง generate อยู่
	JobStatusCompleted  JobStatus = "completed"  // ทุก video ถึงสถานะ terminal แล้ว และมีอย่างน้อยหนึ่งตัวสำเร็จ
	JobStatusFailed     JobStatus = "failed"     // setup ล้มเหลว หรือไม่มี video สำเร็จเลย
	JobStatusCancelled  JobStatus = "cancelled"
)

// ErrorSummary เก็บข้อความ error ระดับ job (setup failures)
type ErrorSummary []string

// Scan implements sql.Scanner for ErrorSummary
func (e *ErrorSummary) Scan(value interface{}) error {
	if value == nil {
		*e = ErrorSummary{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, e)
}

// Value implements driver.Valuer for ErrorSummary
func (e ErrorSummary) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	return json.Marshal(e)
}

type Job struct {
	ID     uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Name   string    `gorm:"size:255;not null"`
	Status JobStatus `gorm:"size:20;default:'pending'"`

	// Batch shape (set ตอน upload ผ่าน validation แล้ว)
	TotalImages    int `gorm:"default:0"`
	TotalPrompts   int `gorm:"default:0"`
	ExpectedVideos int `gorm:"default:0"` // = TotalImages × outputs per prompt

	// Live counters (อัปเดตหลังจบแต่ละ item)
	CompletedVideos   int    `gorm:"default:0"`
	FailedVideos      int    `gorm:"default:0"`
	CurrentProcessing string `gorm:"size:255"` // ไฟล์ภาพที่กำลังทำอยู่ ("" เมื่อไม่ได้รัน)

	ImagesFolderPath string `gorm:"type:text"`
	PromptsFilePath  string `gorm:"type:text"`

	ErrorSummary ErrorSummary `gorm:"type:jsonb;default:'[]'"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	Videos []*Video `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
}

func (Job) TableName() string {
	return "jobs"
}

// IsProcessing ตรวจสอบว่า job กำลังรันอยู่
func (j *Job) IsProcessing() bool {
	return j.Status == JobStatusProcessing
}

// IsTerminal ตรวจสอบว่า job จบแล้ว
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCancelled
}

// HasInputs ตรวจสอบว่า upload ครบแล้ว (พร้อม start)
func (j *Job) HasInputs() bool {
	return j.ImagesFolderPath != "" && j.PromptsFilePath != ""
}

// Progress สัดส่วนงานที่เสร็จ 0..1 (นับเฉพาะ completed, ไม่รวม failed)
func (j *Job) Progress() float64 {
	if j.ExpectedVideos == 0 {
		return 0
	}
	return float64(j.CompletedVideos) / float64(j.ExpectedVideos)
}

// SettledVideos จำนวน video ที่ถึงสถานะ terminal แล้ว
func (j *Job) SettledVideos() int {
	return j.CompletedVideos + j.FailedVideos
}

// AppendError เพิ่มข้อความ error ระดับ job
func (j *Job) AppendError(msg string) {
	if j.ErrorSummary == nil {
		j.ErrorSummary = ErrorSummary{}
	}
	j.ErrorSummary = append(j.ErrorSummary, msg)
}
