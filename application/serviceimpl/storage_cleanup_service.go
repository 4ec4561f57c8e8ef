package serviceimpl

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"veobatch/domain/repositories"
	"veobatch/domain/services"
	"veobatch/pkg/logger"
	"veobatch/pkg/scheduler"
	"veobatch/pkg/tasks"
	"veobatch/pkg/utils"
)

// StorageCleanupConfig การตั้งค่าสำหรับ cleanup
type StorageCleanupConfig struct {
	UploadPath     string        // โฟลเดอร์รูป+prompt ที่อัปโหลด
	OutputPath     string        // โฟลเดอร์วิดีโอที่ดาวน์โหลดมา
	TempPath       string        // โฟลเดอร์ไฟล์ชั่วคราว
	CleanupCron    string        // cron expression (default: "0 3 * * *" = ตี 3 ทุกวัน)
	TempFileMaxAge time.Duration // อายุ temp file สูงสุด (default: 24 ชั่วโมง)
	TaskRetention  time.Duration // เก็บ upscale task ที่จบแล้วนานเท่าไหร่ (default: 24 ชั่วโมง)
	MinFreeSpaceGB int           // พื้นที่ว่างขั้นต่ำก่อนเตือน
}

// StorageCleanupService เก็บกวาดดิสก์และ in-memory task table เป็นรอบ
type StorageCleanupService struct {
	config    StorageCleanupConfig
	jobRepo   repositories.JobRepository
	taskStore *tasks.Store
	scheduler scheduler.EventScheduler
}

func NewStorageCleanupService(
	config StorageCleanupConfig,
	jobRepo repositories.JobRepository,
	taskStore *tasks.Store,
	eventScheduler scheduler.EventScheduler,
) *StorageCleanupService {
	service := &StorageCleanupService{
		config:    config,
		jobRepo:   jobRepo,
		taskStore: taskStore,
		scheduler: eventScheduler,
	}

	if service.config.CleanupCron == "" {
		service.config.CleanupCron = "0 3 * * *"
	}
	if service.config.TempFileMaxAge == 0 {
		service.config.TempFileMaxAge = 24 * time.Hour
	}
	if service.config.TaskRetention == 0 {
		service.config.TaskRetention = 24 * time.Hour
	}
	if service.config.MinFreeSpaceGB == 0 {
		service.config.MinFreeSpaceGB = 10
	}

	return service
}

// RegisterCleanupJob ลงทะเบียน cleanup กับ scheduler
func (s *StorageCleanupService) RegisterCleanupJob() error {
	return s.scheduler.AddJob("storage_cleanup", s.config.CleanupCron, func() {
		ctx := context.Background()
		s.RunCleanup(ctx)
	})
}

// RunCleanup รันทุก cleanup task
func (s *StorageCleanupService) RunCleanup(ctx context.Context) {
	logger.InfoContext(ctx, "Starting storage cleanup")

	tempCleaned, tempSize := s.cleanupTempFiles(ctx)
	orphanCleaned, orphanSize := s.cleanupOrphanedJobDirs(ctx)
	evicted := s.taskStore.Evict(s.config.TaskRetention)

	s.checkDiskSpace(ctx)

	logger.InfoContext(ctx, "Storage cleanup completed",
		"temp_files_cleaned", tempCleaned,
		"orphan_dirs_cleaned", orphanCleaned,
		"tasks_evicted", evicted,
		"space_freed_mb", (tempSize+orphanSize)/1024/1024,
	)
}

// cleanupTempFiles ลบ temp files ที่เก่าเกิน max age
func (s *StorageCleanupService) cleanupTempFiles(ctx context.Context) (int, int64) {
	if s.config.TempPath == "" {
		return 0, 0
	}

	count := 0
	var totalSize int64
	cutoff := time.Now().Add(-s.config.TempFileMaxAge)

	err := filepath.Walk(s.config.TempPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}

		if info.ModTime().Before(cutoff) {
			size := info.Size()
			if err := os.Remove(path); err == nil {
				count++
				totalSize += size
				logger.DebugContext(ctx, "Deleted temp file", "path", path)
			}
		}
		return nil
	})

	if err != nil {
		logger.WarnContext(ctx, "Error walking temp directory", "error", err)
	}

	return count, totalSize
}

// cleanupOrphanedJobDirs ลบโฟลเดอร์ของ job ที่ record หายไปแล้ว
// (เช่น delete record สำเร็จแต่ลบไฟล์พลาด)
func (s *StorageCleanupService) cleanupOrphanedJobDirs(ctx context.Context) (int, int64) {
	count := 0
	var totalSize int64

	for _, base := range []string{s.config.UploadPath, s.config.OutputPath} {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			jobID, err := uuid.Parse(entry.Name())
			if err != nil {
				// โฟลเดอร์ที่ไม่ใช่ job id ไม่ใช่ของเรา อย่าไปยุ่ง
				continue
			}

			if _, err := s.jobRepo.GetByID(ctx, jobID); err == nil {
				continue
			}

			jobDir := filepath.Join(base, entry.Name())
			dirSize, _ := utils.GetDirectorySize(jobDir)

			if err := os.RemoveAll(jobDir); err == nil {
				count++
				totalSize += dirSize
				logger.InfoContext(ctx, "Deleted orphaned job directory", "job_id", jobID, "dir", jobDir, "size_mb", dirSize/1024/1024)
			} else {
				logger.WarnContext(ctx, "Failed to delete orphaned directory", "dir", jobDir, "error", err)
			}
		}
	}

	return count, totalSize
}

// checkDiskSpace เตือนเมื่อพื้นที่ว่างต่ำกว่าเกณฑ์
func (s *StorageCleanupService) checkDiskSpace(ctx context.Context) {
	info, err := utils.GetDiskInfo(s.config.OutputPath)
	if err != nil {
		logger.WarnContext(ctx, "Failed to get disk info", "error", err)
		return
	}

	freeGB := info.Free / 1024 / 1024 / 1024

	if freeGB < uint64(s.config.MinFreeSpaceGB) {
		logger.WarnContext(ctx, "Low disk space warning",
			"free", utils.FormatBytes(info.Free),
			"min_required_gb", s.config.MinFreeSpaceGB,
			"used_percent", info.UsedPercent,
		)
	} else {
		logger.InfoContext(ctx, "Disk space check",
			"free", utils.FormatBytes(info.Free),
			"used_percent", info.UsedPercent,
		)
	}
}

// GetStorageStats สรุปการใช้ดิสก์ปัจจุบัน
func (s *StorageCleanupService) GetStorageStats(ctx context.Context) (*services.StorageStats, error) {
	diskInfo, err := utils.GetDiskInfo(s.config.OutputPath)
	if err != nil {
		return nil, err
	}

	outputsSize, _ := utils.GetDirectorySize(s.config.OutputPath)
	uploadsSize, _ := utils.GetDirectorySize(s.config.UploadPath)

	var tempSize int64
	if s.config.TempPath != "" {
		tempSize, _ = utils.GetDirectorySize(s.config.TempPath)
	}

	jobFolders := 0
	if entries, err := os.ReadDir(s.config.OutputPath); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				jobFolders++
			}
		}
	}

	return &services.StorageStats{
		DiskTotal:       diskInfo.Total,
		DiskFree:        diskInfo.Free,
		DiskUsed:        diskInfo.Used,
		DiskUsedPercent: diskInfo.UsedPercent,
		OutputsSize:     outputsSize,
		UploadsSize:     uploadsSize,
		TempSize:        tempSize,
		JobFolderCount:  jobFolders,
	}, nil
}
