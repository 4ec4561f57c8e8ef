package transcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"veobatch/domain/ports"
	"veobatch/pkg/logger"
)

type FFmpegConfig struct {
	FFmpegPath  string // path to ffmpeg binary
	FFprobePath string // path to ffprobe binary
}

// FFmpegUpscaler implements UpscalerPort ด้วย ffmpeg ภายนอก
// เชื่อเฉพาะ exit status + การมีอยู่ของไฟล์ output
type FFmpegUpscaler struct {
	ffmpegPath  string
	ffprobePath string
}

func NewFFmpegUpscaler(config FFmpegConfig) (ports.UpscalerPort, error) {
	ffmpegPath := config.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	ffprobePath := config.FFprobePath
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	upscaler := &FFmpegUpscaler{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}

	// ตรวจสอบว่า ffmpeg ใช้งานได้
	if !upscaler.IsAvailable() {
		return nil, fmt.Errorf("ffmpeg not available at path: %s", ffmpegPath)
	}

	return upscaler, nil
}

// IsAvailable ตรวจสอบว่า ffmpeg พร้อมใช้งาน
func (u *FFmpegUpscaler) IsAvailable() bool {
	cmd := exec.Command(u.ffmpegPath, "-version")
	err := cmd.Run()
	return err == nil
}

// Upscale แปลงวิดีโอเป็น 4K (3840x2160) ด้วย lanczos scaling
func (u *FFmpegUpscaler) Upscale(ctx context.Context, inputPath, outputPath string, preset ports.QualityPreset) error {
	cfg := ports.GetPresetConfig(preset)

	logger.InfoContext(ctx, "Starting upscale",
		"input", inputPath,
		"output", outputPath,
		"preset", string(cfg.Name),
		"crf", cfg.CRF,
	)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	args := []string{
		"-i", inputPath,
		"-vf", "scale=3840:2160:flags=lanczos",
		"-c:v", "libx264",
		"-preset", cfg.Preset,
		"-crf", strconv.Itoa(cfg.CRF),
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, u.ffmpegPath, args...)
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		logger.ErrorContext(ctx, "FFmpeg upscale failed", "error", err, "input", inputPath)
		return fmt.Errorf("ffmpeg failed: %w", err)
	}

	// exit status 0 อย่างเดียวไม่พอ ไฟล์ output ต้องมีจริงและไม่ว่าง
	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("upscale output missing: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(outputPath)
		return fmt.Errorf("upscale output is empty: %s", outputPath)
	}

	logger.InfoContext(ctx, "Upscale completed",
		"output", outputPath,
		"size_bytes", info.Size(),
	)
	return nil
}

// Probe อ่านข้อมูลวิดีโอด้วย ffprobe
func (u *FFmpegUpscaler) Probe(ctx context.Context, inputPath string) (*ports.VideoInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, u.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		logger.ErrorContext(ctx, "ffprobe failed", "error", err, "path", inputPath)
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(output, &probeData); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &ports.VideoInfo{}

	if probeData.Format.Duration != "" {
		if duration, err := strconv.ParseFloat(probeData.Format.Duration, 64); err == nil {
			info.Duration = int(duration)
		}
	}
	if probeData.Format.BitRate != "" {
		if bitrate, err := strconv.ParseInt(probeData.Format.BitRate, 10, 64); err == nil {
			info.Bitrate = bitrate
		}
	}

	for _, stream := range probeData.Streams {
		if stream.CodecType == "video" {
			info.Width = stream.Width
			info.Height = stream.Height
			info.Codec = stream.CodecName
			if stream.RFrameRate != "" {
				info.FrameRate = parseFrameRate(stream.RFrameRate)
			}
		}
	}

	return info, nil
}

// ffprobe JSON output structures
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

// parseFrameRate แปลง frame rate จาก string (e.g., "30000/1001") เป็น float
func parseFrameRate(rate string) float64 {
	parts := strings.Split(rate, "/")
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
