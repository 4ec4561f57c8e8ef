package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"veobatch/domain/models"
	"veobatch/domain/repositories"
)

type JobRepositoryImpl struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) repositories.JobRepository {
	return &JobRepositoryImpl{db: db}
}

func (r *JobRepositoryImpl) Create(ctx context.Context, job *models.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *JobRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepositoryImpl) List(ctx context.Context, status models.JobStatus, limit int) ([]*models.Job, error) {
	var jobs []*models.Job
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&jobs).Error
	return jobs, err
}

func (r *JobRepositoryImpl) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Updates(fields).Error
}

func (r *JobRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Update("status", status).Error
}

func (r *JobRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	// ลบ videos ก่อนกัน foreign key ค้าง (migration เก่าอาจไม่มี ON DELETE CASCADE)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", id).Delete(&models.Video{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Job{}).Error
	})
}

func (r *JobRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Job{}).Count(&count).Error
	return count, err
}

func (r *JobRepositoryImpl) GetStuckProcessing(ctx context.Context) ([]*models.Job, error) {
	var jobs []*models.Job
	err := r.db.WithContext(ctx).Where("status = ?", models.JobStatusProcessing).Find(&jobs).Error
	return jobs, err
}
