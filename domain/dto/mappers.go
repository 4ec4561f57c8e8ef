package dto

import (
	"veobatch/domain/models"
)

func JobToJobResponse(job *models.Job) *JobResponse {
	if job == nil {
		return nil
	}
	return &JobResponse{
		ID:                job.ID,
		Name:              job.Name,
		Status:            string(job.Status),
		TotalImages:       job.TotalImages,
		TotalPrompts:      job.TotalPrompts,
		ExpectedVideos:    job.ExpectedVideos,
		CompletedVideos:   job.CompletedVideos,
		FailedVideos:      job.FailedVideos,
		CurrentProcessing: job.CurrentProcessing,
		Progress:          job.Progress(),
		ErrorSummary:      job.ErrorSummary,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
	}
}

func VideoToVideoResponse(video *models.Video) *VideoResponse {
	if video == nil {
		return nil
	}
	return &VideoResponse{
		ID:            video.ID,
		JobID:         video.JobID,
		ImageFilename: video.ImageFilename,
		PromptNumber:  video.PromptNumber,
		PromptText:    video.PromptText,
		OutputIndex:   video.OutputIndex,
		Status:        string(video.Status),
		ErrorType:     string(video.ErrorType),
		ErrorMessage:  video.ErrorMessage,
		RetryCount:    video.RetryCount,
		FastURL:       video.FastURL,
		DurableURL:    video.DurableURL,
		Upscaled:      video.Upscaled,
		Selected:      video.Selected,
		Resolution:    video.CurrentResolution(),
		StartedAt:     video.GenerationStartedAt,
		CompletedAt:   video.GenerationCompletedAt,
		CreatedAt:     video.CreatedAt,
	}
}

func VideosToVideoResponses(videos []*models.Video) []VideoResponse {
	out := make([]VideoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, *VideoToVideoResponse(v))
	}
	return out
}
