package tasks

import (
	"sync"
	"testing"
	"time"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	id := s.Create([]string{"a", "b", "c"}, "balanced")

	task, ok := s.Get(id)
	if !ok {
		t.Fatal("task not found after Create")
	}
	if task.Status != TaskStatusQueued || task.Progress != 0 {
		t.Errorf("new task: status=%s progress=%d", task.Status, task.Progress)
	}

	s.Start(id)
	task, _ = s.Get(id)
	if task.Status != TaskStatusProcessing || task.StartedAt == nil {
		t.Errorf("after Start: status=%s", task.Status)
	}

	s.Advance(id, 1, 3, "a")
	s.RecordSuccess(id)
	s.Advance(id, 2, 3, "b")
	s.RecordFailure(id)
	s.Advance(id, 3, 3, "c")
	s.RecordSuccess(id)
	s.Finish(id)

	task, _ = s.Get(id)
	if task.Status != TaskStatusCompleted {
		t.Errorf("one success is enough for completed, got %s", task.Status)
	}
	if task.Progress != 100 {
		t.Errorf("terminal progress = %d, want 100", task.Progress)
	}
	if task.CompletedCount != 2 || task.FailedCount != 1 {
		t.Errorf("counts = %d/%d", task.CompletedCount, task.FailedCount)
	}
}

func TestStoreAllFailed(t *testing.T) {
	s := NewStore()
	id := s.Create([]string{"a"}, "fast")
	s.Start(id)
	s.Advance(id, 1, 1, "a")
	s.RecordFailure(id)
	s.Finish(id)

	task, _ := s.Get(id)
	if task.Status != TaskStatusFailed {
		t.Errorf("zero successes must fail the task, got %s", task.Status)
	}
	if task.Progress != 100 {
		t.Errorf("terminal progress = %d", task.Progress)
	}
}

func TestProgressMonotonic(t *testing.T) {
	s := NewStore()
	id := s.Create([]string{"a", "b", "c", "d"}, "high")
	s.Start(id)

	s.Advance(id, 3, 4, "c")
	task, _ := s.Get(id)
	before := task.Progress

	// ค่าย้อนหลังต้องไม่ทำให้ progress ลด
	s.Advance(id, 1, 4, "a")
	task, _ = s.Get(id)
	if task.Progress < before {
		t.Errorf("progress decreased: %d -> %d", before, task.Progress)
	}
}

func TestGetUnknownTask(t *testing.T) {
	s := NewStore()
	if _, ok := s.Get("missing"); ok {
		t.Error("unknown id should not be found")
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	s := NewStore()
	id := s.Create([]string{"a"}, "fast")
	s.AppendLog(id, "info", "first")

	snap, _ := s.Get(id)
	snap.Logs = append(snap.Logs, LogEntry{Message: "mutated copy"})
	snap.VideoIDs[0] = "changed"

	fresh, _ := s.Get(id)
	if len(fresh.Logs) != 1 {
		t.Errorf("store logs mutated through snapshot, len=%d", len(fresh.Logs))
	}
	if fresh.VideoIDs[0] != "a" {
		t.Errorf("store video ids mutated through snapshot: %v", fresh.VideoIDs)
	}
}

func TestEvict(t *testing.T) {
	s := NewStore()

	oldID := s.Create([]string{"a"}, "fast")
	s.Start(oldID)
	s.RecordSuccess(oldID)
	s.Finish(oldID)

	// บังคับ CompletedAt ให้เก่ากว่า retention
	s.mutex.Lock()
	past := time.Now().Add(-48 * time.Hour)
	s.tasks[oldID].CompletedAt = &past
	s.mutex.Unlock()

	activeID := s.Create([]string{"b"}, "fast")
	s.Start(activeID)

	removed := s.Evict(24 * time.Hour)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := s.Get(oldID); ok {
		t.Error("expired task still present")
	}
	if _, ok := s.Get(activeID); !ok {
		t.Error("running task must never be evicted")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	id := s.Create([]string{"a", "b", "c", "d", "e"}, "balanced")
	s.Start(id)

	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Advance(id, i, 5, "x")
			s.RecordSuccess(id)
		}(i)
		go func() {
			defer wg.Done()
			s.Get(id)
		}()
	}
	wg.Wait()

	task, _ := s.Get(id)
	if task.CompletedCount != 5 {
		t.Errorf("completed = %d, want 5", task.CompletedCount)
	}
}
