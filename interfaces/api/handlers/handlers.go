package handlers

import (
	"veobatch/application/serviceimpl"
	"veobatch/domain/services"
)

// Services รวม dependencies ที่ handlers ต้องใช้
type Services struct {
	JobService        services.JobService
	UploadService     services.UploadService
	VideoService      services.VideoService
	GenerationService services.GenerationService
	UpscaleService    services.UpscaleService
	CleanupService    *serviceimpl.StorageCleanupService
	TempPath          string
}

// Handlers รวม HTTP handlers ทั้งหมด
type Handlers struct {
	JobHandler     *JobHandler
	VideoHandler   *VideoHandler
	UpscaleHandler *UpscaleHandler
	SystemHandler  *SystemHandler
}

func NewHandlers(services *Services) *Handlers {
	return &Handlers{
		JobHandler:     NewJobHandler(services.JobService, services.UploadService, services.TempPath),
		VideoHandler:   NewVideoHandler(services.VideoService, services.GenerationService),
		UpscaleHandler: NewUpscaleHandler(services.UpscaleService),
		SystemHandler:  NewSystemHandler(services.CleanupService),
	}
}
