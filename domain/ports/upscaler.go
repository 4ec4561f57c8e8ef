package ports

import "context"

// QualityPreset trade-off ระหว่างความเร็ว encode กับคุณภาพ/ขนาดไฟล์
type QualityPreset string

const (
	PresetFast     QualityPreset = "fast"
	PresetBalanced QualityPreset = "balanced"
	PresetHigh     QualityPreset = "high"
)

// PresetConfig การตั้งค่า encoder ต่อ preset
type PresetConfig struct {
	Name   QualityPreset
	CRF    int    // ต่ำกว่า = คุณภาพดีกว่า ไฟล์ใหญ่กว่า
	Preset string // ffmpeg -preset
}

// presetConfigs ค่าที่ใช้จริงใน production
var presetConfigs = map[QualityPreset]PresetConfig{
	PresetFast:     {Name: PresetFast, CRF: 23, Preset: "fast"},
	PresetBalanced: {Name: PresetBalanced, CRF: 20, Preset: "medium"},
	PresetHigh:     {Name: PresetHigh, CRF: 18, Preset: "slow"},
}

// GetPresetConfig คืน config ตาม preset, fallback เป็น balanced
func GetPresetConfig(p QualityPreset) PresetConfig {
	if cfg, ok := presetConfigs[p]; ok {
		return cfg
	}
	return presetConfigs[PresetBalanced]
}

// ValidPreset ตรวจสอบชื่อ preset
func ValidPreset(s string) bool {
	_, ok := presetConfigs[QualityPreset(s)]
	return ok
}

// UpscalerPort เรียก transcoder ภายนอก (ffmpeg) อัปภาพเป็น 4K
// เชื่อเฉพาะ exit status กับการมีอยู่ของไฟล์ output เท่านั้น
type UpscalerPort interface {
	// Upscale แปลง input เป็น 4K ที่ outputPath
	Upscale(ctx context.Context, inputPath, outputPath string, preset QualityPreset) error

	// Probe อ่านข้อมูลวิดีโอ (resolution, duration)
	Probe(ctx context.Context, inputPath string) (*VideoInfo, error)

	// IsAvailable ตรวจสอบว่า ffmpeg พร้อมใช้งาน
	IsAvailable() bool
}

// VideoInfo ข้อมูลของวิดีโอ
type VideoInfo struct {
	Duration  int // duration in seconds
	Width     int
	Height    int
	Bitrate   int64 // bps
	Codec     string
	FrameRate float64
}

// GetQualityLabel แปลง resolution เป็น quality label
func (v *VideoInfo) GetQualityLabel() string {
	switch {
	case v.Height >= 2160:
		return "4K"
	case v.Height >= 1080:
		return "1080p"
	case v.Height >= 720:
		return "720p"
	default:
		return "SD"
	}
}
