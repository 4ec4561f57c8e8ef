package serviceimpl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"veobatch/domain/dto"
	"veobatch/domain/models"
	"veobatch/domain/repositories"
	"veobatch/domain/services"
	"veobatch/infrastructure/redis"
	"veobatch/pkg/config"
	"veobatch/pkg/logger"
)

const jobCacheTTL = 10 * time.Second

type JobServiceImpl struct {
	jobRepo    repositories.JobRepository
	generation services.GenerationService
	cache      *redis.Client
	uploadPath string
	outputPath string

	// cancel functions ของ run ที่กำลัง in-flight เพื่อให้ delete หยุดงานได้
	runMutex sync.Mutex
	runs     map[uuid.UUID]context.CancelFunc
}

func NewJobService(jobRepo repositories.JobRepository, generation services.GenerationService, cache *redis.Client, cfg *config.Config) services.JobService {
	return &JobServiceImpl{
		jobRepo:    jobRepo,
		generation: generation,
		cache:      cache,
		uploadPath: cfg.Storage.UploadPath,
		outputPath: cfg.Storage.OutputPath,
		runs:       make(map[uuid.UUID]context.CancelFunc),
	}
}

func (s *JobServiceImpl) CreateJob(ctx context.Context, req *dto.CreateJobRequest) (*models.Job, error) {
	job := &models.Job{
		ID:     uuid.New(),
		Name:   req.Name,
		Status: models.JobStatusPending,
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		logger.ErrorContext(ctx, "Failed to create job record", "name", req.Name, "error", err)
		return nil, err
	}

	logger.InfoContext(ctx, "Job created", "job_id", job.ID, "name", job.Name)
	return job, nil
}

func (s *JobServiceImpl) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	cacheKey := "veobatch:job:" + id.String()

	if s.cache != nil {
		var cached models.Job
		if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, services.ErrNotFound
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, job, jobCacheTTL); err != nil {
			logger.DebugContext(ctx, "Failed to cache job", "job_id", id, "error", err)
		}
	}

	return job, nil
}

func (s *JobServiceImpl) ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]*models.Job, int64, error) {
	jobs, err := s.jobRepo.List(ctx, status, limit)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list jobs", "status", status, "limit", limit, "error", err)
		return nil, 0, err
	}

	count, err := s.jobRepo.Count(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to count jobs", "error", err)
		return nil, 0, err
	}

	return jobs, count, nil
}

func (s *JobServiceImpl) StartJob(ctx context.Context, id uuid.UUID) (bool, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		logger.WarnContext(ctx, "Job not found for start", "job_id", id)
		return false, services.ErrNotFound
	}

	if job.IsProcessing() {
		logger.InfoContext(ctx, "Job already processing, start is a no-op", "job_id", id)
		return false, nil
	}

	if !job.HasInputs() {
		logger.WarnContext(ctx, "Job has no uploaded inputs", "job_id", id)
		return false, services.ErrMissingInputs
	}

	runCtx, cancel := context.WithCancel(context.Background())
	runCtx = logger.ContextWithRequestID(runCtx, logger.GetRequestID(ctx))

	s.runMutex.Lock()
	s.runs[id] = cancel
	s.runMutex.Unlock()

	logger.InfoContext(ctx, "Spawning batch run", "job_id", id, "name", job.Name)

	go func() {
		defer func() {
			s.runMutex.Lock()
			delete(s.runs, id)
			s.runMutex.Unlock()
			cancel()
		}()

		err := s.generation.RunJob(runCtx, id)
		if err != nil && !errors.Is(err, services.ErrAlreadyRunning) && !errors.Is(err, context.Canceled) {
			logger.Error("Batch run ended with error", "job_id", id, "error", err)
		}
	}()

	return true, nil
}

func (s *JobServiceImpl) DeleteJob(ctx context.Context, id uuid.UUID) error {
	_, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		logger.WarnContext(ctx, "Job not found for deletion", "job_id", id)
		return services.ErrNotFound
	}

	// หยุด run ที่ค้างอยู่ก่อน ลบ record แล้ว orchestrator ตรวจเจอเองอีกชั้น
	s.runMutex.Lock()
	if cancel, ok := s.runs[id]; ok {
		cancel()
	}
	s.runMutex.Unlock()

	if err := s.jobRepo.Delete(ctx, id); err != nil {
		logger.ErrorContext(ctx, "Failed to delete job record", "job_id", id, "error", err)
		return err
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, "veobatch:job:"+id.String()); err != nil {
			logger.DebugContext(ctx, "Failed to invalidate job cache", "job_id", id, "error", err)
		}
	}

	// ไฟล์บนดิสก์ลบทีหลัง record - เหลือ orphan files ดีกว่า orphan rows
	for _, dir := range []string{
		filepath.Join(s.uploadPath, id.String()),
		filepath.Join(s.outputPath, id.String()),
	} {
		if err := os.RemoveAll(dir); err != nil {
			logger.WarnContext(ctx, "Failed to remove job files", "job_id", id, "dir", dir, "error", err)
		}
	}

	logger.InfoContext(ctx, "Job deleted", "job_id", id)
	return nil
}
