package serviceimpl

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"veobatch/domain/dto"
	"veobatch/domain/models"
	"veobatch/domain/repositories"
	"veobatch/domain/services"
	"veobatch/pkg/config"
	"veobatch/pkg/logger"
)

// promptHeaderPattern จับหัวบรรทัด prompt_N: (case-insensitive)
// เนื้อหา prompt คือข้อความระหว่างหัวบรรทัดนี้กับหัวบรรทัดถัดไป
var promptHeaderPattern = regexp.MustCompile(`(?im)^\s*prompt_(\d+)\s*:`)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

type UploadServiceImpl struct {
	jobRepo          repositories.JobRepository
	videoRepo        repositories.VideoRepository
	uploadPath       string
	outputsPerPrompt int
}

func NewUploadService(jobRepo repositories.JobRepository, videoRepo repositories.VideoRepository, cfg *config.Config) services.UploadService {
	return &UploadServiceImpl{
		jobRepo:          jobRepo,
		videoRepo:        videoRepo,
		uploadPath:       cfg.Storage.UploadPath,
		outputsPerPrompt: cfg.Flow.OutputsPerPrompt,
	}
}

func (s *UploadServiceImpl) ProcessUpload(ctx context.Context, jobID uuid.UUID, imagesZipPath, promptsFilePath string) (*dto.UploadResult, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		logger.WarnContext(ctx, "Job not found for upload", "job_id", jobID)
		return nil, services.ErrNotFound
	}

	if job.IsProcessing() {
		logger.WarnContext(ctx, "Cannot replace inputs while job is processing", "job_id", jobID)
		return nil, services.ErrInvalidState
	}

	extractDir := filepath.Join(s.uploadPath, jobID.String(), "images")
	if err := os.RemoveAll(extractDir); err != nil {
		logger.ErrorContext(ctx, "Failed to clear previous images folder", "job_id", jobID, "error", err)
		return nil, err
	}

	imagesDir, err := extractZip(imagesZipPath, extractDir)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to extract images zip", "job_id", jobID, "error", err)
		return nil, fmt.Errorf("failed to extract images archive: %v", err)
	}

	images, err := collectImages(imagesDir)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to scan extracted images", "job_id", jobID, "error", err)
		return nil, err
	}

	prompts, err := parsePromptsFile(promptsFilePath)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to parse prompts file", "job_id", jobID, "error", err)
		return nil, fmt.Errorf("failed to parse prompts file: %v", err)
	}

	if err := validateInputs(images, prompts); err != nil {
		logger.WarnContext(ctx, "Upload validation failed", "job_id", jobID, "images", len(images), "prompts", len(prompts), "error", err)
		return nil, err
	}

	// เก็บ prompts file ไว้ข้าง images folder เผื่อ re-run
	storedPromptsPath := filepath.Join(s.uploadPath, jobID.String(), "prompts.txt")
	if err := copyFile(promptsFilePath, storedPromptsPath); err != nil {
		logger.ErrorContext(ctx, "Failed to store prompts file", "job_id", jobID, "error", err)
		return nil, err
	}

	videos := buildVideoRecords(jobID, images, prompts, s.outputsPerPrompt)

	// upload ใหม่แทนที่ชุดเดิมทั้งหมด เหมือน images folder ที่ถูกล้างข้างบน
	// ไม่งั้น row เก่าค้างแล้ว counter นับเกิน expected_videos
	if err := s.videoRepo.DeleteByJobID(ctx, jobID); err != nil {
		logger.ErrorContext(ctx, "Failed to clear previous video records", "job_id", jobID, "error", err)
		return nil, err
	}

	if err := s.videoRepo.CreateBatch(ctx, videos); err != nil {
		logger.ErrorContext(ctx, "Failed to create video records", "job_id", jobID, "count", len(videos), "error", err)
		return nil, err
	}

	expected := len(images) * s.outputsPerPrompt

	err = s.jobRepo.UpdateFields(ctx, jobID, map[string]interface{}{
		"total_images":       len(images),
		"total_prompts":      len(prompts),
		"expected_videos":    expected,
		"completed_videos":   0,
		"failed_videos":      0,
		"images_folder_path": imagesDir,
		"prompts_file_path":  storedPromptsPath,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to update job after upload", "job_id", jobID, "error", err)
		return nil, err
	}

	logger.InfoContext(ctx, "Upload processed",
		"job_id", jobID,
		"images", len(images),
		"prompts", len(prompts),
		"expected_videos", expected)

	return &dto.UploadResult{
		JobID:          jobID,
		TotalImages:    len(images),
		TotalPrompts:   len(prompts),
		ExpectedVideos: expected,
	}, nil
}

// extractZip แตก zip ลง destDir
// ถ้าข้างในมีโฟลเดอร์เดียว (zip ของ macOS/Windows ชอบห่อชั้นเดียว) คืน path โฟลเดอร์นั้นแทน
func extractZip(zipPath, destDir string) (string, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}

	for _, file := range reader.File {
		name := filepath.Clean(file.Name)
		if strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			continue
		}
		// ข้าม metadata ของ macOS
		if strings.HasPrefix(name, "__MACOSX") || strings.HasPrefix(filepath.Base(name), "._") {
			continue
		}

		target := filepath.Join(destDir, name)

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return "", err
		}

		if err := extractZipFile(file, target); err != nil {
			return "", err
		}
	}

	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(destDir, entries[0].Name()), nil
	}
	return destDir, nil
}

func extractZipFile(file *zip.File, target string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// collectImages หา indexed images (1.jpg, 2.png, ...) ในโฟลเดอร์
// คืน map จาก index ไปชื่อไฟล์
func collectImages(dir string) (map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	leadingDigits := regexp.MustCompile(`^(\d+)`)

	images := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !imageExtensions[ext] {
			continue
		}

		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		match := leadingDigits.FindStringSubmatch(stem)
		if match == nil {
			continue
		}

		num, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		images[num] = entry.Name()
	}

	return images, nil
}

// parsePromptsFile อ่านไฟล์รูปแบบ
//
//	prompt_1: Animate the character...
//	prompt_2: ...
//
// เนื้อหา prompt กินได้หลายบรรทัดจนถึงหัวบรรทัด prompt_N ถัดไป
func parsePromptsFile(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content := string(data)
	headers := promptHeaderPattern.FindAllStringSubmatchIndex(content, -1)

	prompts := make(map[int]string)
	for i, header := range headers {
		num, err := strconv.Atoi(content[header[2]:header[3]])
		if err != nil {
			continue
		}

		textStart := header[1]
		textEnd := len(content)
		if i+1 < len(headers) {
			textEnd = headers[i+1][0]
		}

		text := strings.TrimSpace(content[textStart:textEnd])
		if text == "" {
			continue
		}
		prompts[num] = text
	}

	return prompts, nil
}

// validateInputs ตรวจว่า index ของ images กับ prompts ตรงกันเป๊ะ
// แค่จำนวนเท่ากันไม่พอ - set ต้องเท่ากันด้วย
func validateInputs(images map[int]string, prompts map[int]string) error {
	if len(images) == 0 {
		return errors.New("no indexed images found in archive")
	}
	if len(prompts) == 0 {
		return errors.New("no prompts found in prompts file")
	}

	if len(images) != len(prompts) {
		return fmt.Errorf("image count (%d) doesn't match prompt count (%d)", len(images), len(prompts))
	}

	var missingImages, missingPrompts []int
	for num := range prompts {
		if _, ok := images[num]; !ok {
			missingImages = append(missingImages, num)
		}
	}
	for num := range images {
		if _, ok := prompts[num]; !ok {
			missingPrompts = append(missingPrompts, num)
		}
	}

	if len(missingImages) > 0 || len(missingPrompts) > 0 {
		sort.Ints(missingImages)
		sort.Ints(missingPrompts)

		msg := "Mismatch: "
		if len(missingImages) > 0 {
			msg += fmt.Sprintf("Missing images for prompts: %v. ", missingImages)
		}
		if len(missingPrompts) > 0 {
			msg += fmt.Sprintf("Missing prompts for images: %v.", missingPrompts)
		}
		return errors.New(strings.TrimSpace(msg))
	}

	return nil
}

// buildVideoRecords สร้าง video rows เรียงตาม prompt number
// หนึ่ง prompt ได้ outputsPerPrompt variants (output_index เริ่มที่ 1)
func buildVideoRecords(jobID uuid.UUID, images map[int]string, prompts map[int]string, outputsPerPrompt int) []*models.Video {
	nums := make([]int, 0, len(images))
	for num := range images {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	videos := make([]*models.Video, 0, len(nums)*outputsPerPrompt)
	for _, num := range nums {
		for idx := 1; idx <= outputsPerPrompt; idx++ {
			videos = append(videos, &models.Video{
				ID:            uuid.New(),
				JobID:         jobID,
				ImageFilename: images[num],
				PromptNumber:  num,
				PromptText:    prompts[num],
				OutputIndex:   idx,
				Status:        models.VideoStatusQueued,
			})
		}
	}

	return videos
}

func copyFile(src, dst string) error {
	if src == dst {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
