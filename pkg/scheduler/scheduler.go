package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"veobatch/pkg/logger"
)

// EventScheduler รวม background jobs ทั้งหมดไว้ที่เดียว (stuck detector,
// storage cleanup, fast-tier sweep) ลงทะเบียนด้วย id + cron expression
type EventScheduler interface {
	Start()
	Stop()
	IsRunning() bool
	AddJob(id, cronExpr string, task func()) error
	RemoveJob(id string) error
}

type gocronScheduler struct {
	scheduler *gocron.Scheduler
	jobs      map[string]*gocron.Job
	mu        sync.Mutex
	running   bool
}

func NewEventScheduler() EventScheduler {
	s := gocron.NewScheduler(time.UTC)
	// รอบก่อนหน้ายังไม่จบ = ข้ามรอบนี้ กัน cleanup ซ้อนกันเอง
	s.SingletonModeAll()

	return &gocronScheduler{
		scheduler: s,
		jobs:      make(map[string]*gocron.Job),
	}
}

func (s *gocronScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.scheduler.StartAsync()
	s.running = true
	logger.Info("Event scheduler started", "jobs", len(s.jobs))
}

func (s *gocronScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.scheduler.Stop()
	s.running = false
	logger.Info("Event scheduler stopped")
}

func (s *gocronScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *gocronScheduler) AddJob(id, cronExpr string, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("scheduled job %q already registered", id)
	}

	job, err := s.scheduler.Cron(cronExpr).Do(func() {
		logger.Debug("Running scheduled job", "id", id)
		task()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %q: %v", id, err)
	}

	s.jobs[id] = job
	logger.Info("Scheduled job registered", "id", id, "cron", cronExpr, "next_run", job.NextRun().Format(time.RFC3339))
	return nil
}

func (s *gocronScheduler) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("scheduled job %q not found", id)
	}

	s.scheduler.RemoveByReference(job)
	delete(s.jobs, id)
	return nil
}
