package tasks

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus สถานะของ upscale task
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed" // อย่างน้อยหนึ่ง item สำเร็จ
	TaskStatusFailed     TaskStatus = "failed"    // ไม่มี item ไหนสำเร็จเลย
)

// LogEntry บรรทัด log ของ task เรียงตามเวลา
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Level     string    `json:"type"` // info, error
}

// UpscaleTask สถานะ batch upscale หนึ่งชุด อยู่ใน memory เท่านั้น
type UpscaleTask struct {
	ID             string     `json:"task_id"`
	VideoIDs       []string   `json:"video_ids"`
	Preset         string     `json:"quality_preset"`
	Status         TaskStatus `json:"status"`
	Progress       int        `json:"progress"` // 0-100 ไม่ลดลง
	CurrentIndex   int        `json:"current_index"`
	CurrentVideoID string     `json:"current_video_id,omitempty"`
	CompletedCount int        `json:"completed_count"`
	FailedCount    int        `json:"failed_count"`
	Logs           []LogEntry `json:"logs"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store เก็บ task table แบบ mutex-guarded
// HTTP layer อ่าน snapshot ระหว่างที่ batch worker เขียน
type Store struct {
	mutex sync.RWMutex
	tasks map[string]*UpscaleTask
}

func NewStore() *Store {
	return &Store{
		tasks: make(map[string]*UpscaleTask),
	}
}

// Create สร้าง task ใหม่สถานะ queued progress 0
func (s *Store) Create(videoIDs []string, preset string) string {
	id := uuid.New().String()
	task := &UpscaleTask{
		ID:        id,
		VideoIDs:  append([]string(nil), videoIDs...),
		Preset:    preset,
		Status:    TaskStatusQueued,
		Progress:  0,
		Logs:      []LogEntry{},
		CreatedAt: time.Now(),
	}

	s.mutex.Lock()
	s.tasks[id] = task
	s.mutex.Unlock()

	return id
}

// Start queued → processing
func (s *Store) Start(id string) {
	now := time.Now()

	s.mutex.Lock()
	if t, ok := s.tasks[id]; ok {
		t.Status = TaskStatusProcessing
		t.StartedAt = &now
	}
	s.mutex.Unlock()
}

// Advance บันทึกว่ากำลังทำ item ที่ index (1-based) และอัปเดต progress
// progress ไม่มีทางลดลง แม้ caller ส่งค่าย้อนหลัง
func (s *Store) Advance(id string, index, total int, videoID string) {
	s.mutex.Lock()
	if t, ok := s.tasks[id]; ok {
		t.CurrentIndex = index
		t.CurrentVideoID = videoID
		if total > 0 {
			p := index * 100 / total
			if p > t.Progress {
				t.Progress = p
			}
		}
	}
	s.mutex.Unlock()
}

// RecordSuccess นับ item ที่สำเร็จ (รวมกรณี skip เพราะ upscale แล้ว)
func (s *Store) RecordSuccess(id string) {
	s.mutex.Lock()
	if t, ok := s.tasks[id]; ok {
		t.CompletedCount++
	}
	s.mutex.Unlock()
}

// RecordFailure นับ item ที่ fail แล้วทำต่อ ไม่หยุด batch
func (s *Store) RecordFailure(id string) {
	s.mutex.Lock()
	if t, ok := s.tasks[id]; ok {
		t.FailedCount++
	}
	s.mutex.Unlock()
}

// AppendLog เพิ่มบรรทัด log
func (s *Store) AppendLog(id, level, message string) {
	entry := LogEntry{Timestamp: time.Now(), Message: message, Level: level}

	s.mutex.Lock()
	if t, ok := s.tasks[id]; ok {
		t.Logs = append(t.Logs, entry)
	}
	s.mutex.Unlock()
}

// Finish ปิด task: completed ถ้ามีอย่างน้อยหนึ่ง success ไม่งั้น failed
// progress จบที่ 100 เสมอ
func (s *Store) Finish(id string) {
	now := time.Now()

	s.mutex.Lock()
	if t, ok := s.tasks[id]; ok {
		if t.CompletedCount > 0 {
			t.Status = TaskStatusCompleted
		} else {
			t.Status = TaskStatusFailed
		}
		t.Progress = 100
		t.CurrentVideoID = ""
		t.CompletedAt = &now
	}
	s.mutex.Unlock()
}

// Get คืน snapshot แบบ copy เพื่อให้ caller อ่านได้โดยไม่แตะของจริง
func (s *Store) Get(id string) (UpscaleTask, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return UpscaleTask{}, false
	}

	snapshot := *t
	snapshot.VideoIDs = append([]string(nil), t.VideoIDs...)
	snapshot.Logs = append([]LogEntry(nil), t.Logs...)
	return snapshot, true
}

// Evict ลบ task ที่จบแล้วและเก่ากว่า retention window
// คืนจำนวนที่ลบไป
func (s *Store) Evict(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	removed := 0

	s.mutex.Lock()
	for id, t := range s.tasks {
		if t.Status != TaskStatusCompleted && t.Status != TaskStatusFailed {
			continue
		}
		if t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	s.mutex.Unlock()

	return removed
}

// Count จำนวน task ที่ค้างอยู่ใน store
func (s *Store) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.tasks)
}
