package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"veobatch/domain/models"
	"veobatch/domain/repositories"
)

type VideoRepositoryImpl struct {
	db *gorm.DB
}

func NewVideoRepository(db *gorm.DB) repositories.VideoRepository {
	return &VideoRepositoryImpl{db: db}
}

func (r *VideoRepositoryImpl) Create(ctx context.Context, video *models.Video) error {
	return r.db.WithContext(ctx).Create(video).Error
}

func (r *VideoRepositoryImpl) CreateBatch(ctx context.Context, videos []*models.Video) error {
	if len(videos) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(videos, 100).Error
}

func (r *VideoRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	var video models.Video
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&video).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *VideoRepositoryImpl) GetByJobID(ctx context.Context, jobID uuid.UUID) ([]*models.Video, error) {
	var videos []*models.Video
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("prompt_number ASC, output_index ASC").
		Find(&videos).Error
	return videos, err
}

func (r *VideoRepositoryImpl) GetSelected(ctx context.Context, jobID uuid.UUID) ([]*models.Video, error) {
	var videos []*models.Video
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND selected = ?", jobID, true).
		Order("prompt_number ASC, output_index ASC").
		Find(&videos).Error
	return videos, err
}

func (r *VideoRepositoryImpl) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Video{}).Where("id = ?", id).Updates(fields).Error
}

func (r *VideoRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Video{}).Error
}

func (r *VideoRepositoryImpl) DeleteByJobID(ctx context.Context, jobID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&models.Video{}).Error
}

func (r *VideoRepositoryImpl) CountByJobAndStatus(ctx context.Context, jobID uuid.UUID, status models.VideoStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Video{}).
		Where("job_id = ? AND status = ?", jobID, status).
		Count(&count).Error
	return count, err
}

func (r *VideoRepositoryImpl) GetExpiredFast(ctx context.Context, now time.Time) ([]*models.Video, error) {
	var videos []*models.Video
	err := r.db.WithContext(ctx).
		Where("fast_key <> '' AND fast_expires_at IS NOT NULL AND fast_expires_at < ?", now).
		Find(&videos).Error
	return videos, err
}

func (r *VideoRepositoryImpl) ClearFastTier(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Video{}).Where("id = ?", id).Updates(map[string]interface{}{
		"fast_url":        "",
		"fast_key":        "",
		"fast_expires_at": nil,
	}).Error
}

func (r *VideoRepositoryImpl) GetStuckGenerating(ctx context.Context, threshold time.Time) ([]*models.Video, error) {
	var videos []*models.Video
	err := r.db.WithContext(ctx).
		Where("status = ? AND generation_started_at IS NOT NULL AND generation_started_at < ?",
			models.VideoStatusGenerating, threshold).
		Find(&videos).Error
	return videos, err
}
