package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	NATS     NATSConfig
	Redis    RedisConfig
	Log      LogConfig
	Storage  StorageConfig
	Flow     FlowConfig
	Retry    RetryConfig
	Upscale  UpscaleConfig
}

type AppConfig struct {
	Name string
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NATSConfig สำหรับ progress events (optional)
type NATSConfig struct {
	URL string // nats://localhost:4222
}

// RedisConfig สำหรับ cache job progress lookups (optional)
type RedisConfig struct {
	URL      string // redis://localhost:6379
	Password string
	DB       int
}

type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	Output     string // stdout, file, both
	FilePath   string // logs/veobatch.log
	MaxSize    int    // MB
	MaxBackups int    // จำนวน backup files
	MaxAge     int    // วัน
	Compress   bool   // บีบอัด backup
}

// StorageConfig สองชั้น: fast tier (TTL-bounded) + durable tier
type StorageConfig struct {
	Type       string // local, s3
	UploadPath string // โฟลเดอร์เก็บรูป+prompt ที่อัปโหลด
	OutputPath string // โฟลเดอร์เก็บวิดีโอที่ดาวน์โหลดจาก driver
	TempPath   string // ไฟล์ชั่วคราว (zip extract, upscale work dir)

	BasePath string // root ของ local backend (fast/ + durable/)
	BaseURL  string // URL ที่ serve ไฟล์ local backend

	FastTTL time.Duration // อายุ object ใน fast tier ก่อนลบ (default 2h)

	S3 S3Config
}

type S3Config struct {
	Endpoint      string // minio:9000 หรือ xxx.r2.cloudflarestorage.com
	AccessKey     string
	SecretKey     string
	FastBucket    string // TTL-bounded bucket (serve ให้ UI ทันที)
	DurableBucket string // long-term bucket
	UseSSL        bool   // false สำหรับ MinIO local, true สำหรับ R2
	Region        string // auto สำหรับ R2
	FastPublicURL string // public URL ของ fast bucket (optional)
}

// FlowConfig ตั้งค่าการคุยกับ browser-automation driver
type FlowConfig struct {
	DriverURL     string        // HTTP endpoint ของ driver sidecar
	PollInterval  time.Duration // คาบการ poll สถานะ generation (default 10s)
	MaxWait       time.Duration // รอ generation นานสุดต่อวิดีโอ (default 30m)
	OutputsPerPrompt int        // จำนวน variant ต่อ prompt (default 2)
}

// RetryConfig นโยบาย retry สำหรับ HIGH_DEMAND เท่านั้น
type RetryConfig struct {
	MaxAttempts int           // default 5
	Delay       time.Duration // fixed backoff, default 180s
}

type UpscaleConfig struct {
	FFmpegPath    string        // path ถึง ffmpeg binary
	FFprobePath   string        // path ถึง ffprobe binary
	DefaultPreset string        // fast, balanced, high
	TaskRetention time.Duration // เก็บ task record หลังจบงานนานเท่าไหร่ (default 24h)
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		// ไม่ error ถ้าไม่มี .env file (ใช้ environment variables แทน)
	}

	logMaxSize, _ := strconv.Atoi(getEnv("LOG_MAX_SIZE", "100"))
	logMaxBackups, _ := strconv.Atoi(getEnv("LOG_MAX_BACKUPS", "5"))
	logMaxAge, _ := strconv.Atoi(getEnv("LOG_MAX_AGE", "30"))
	logCompress := getEnv("LOG_COMPRESS", "true") == "true"

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	s3UseSSL := getEnv("S3_USE_SSL", "false") == "true"

	fastTTL := getDurationEnv("STORAGE_FAST_TTL", 2*time.Hour)
	pollInterval := getDurationEnv("FLOW_POLL_INTERVAL", 10*time.Second)
	maxWait := getDurationEnv("FLOW_MAX_WAIT", 30*time.Minute)
	outputsPerPrompt, _ := strconv.Atoi(getEnv("FLOW_OUTPUTS_PER_PROMPT", "2"))
	retryMax, _ := strconv.Atoi(getEnv("RETRY_MAX_ATTEMPTS", "5"))
	retryDelay := getDurationEnv("RETRY_DELAY", 180*time.Second)
	taskRetention := getDurationEnv("UPSCALE_TASK_RETENTION", 24*time.Hour)

	config := &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "Veobatch"),
			Port: getEnv("APP_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "veobatch"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "both"),
			FilePath:   getEnv("LOG_FILE", "logs/veobatch.log"),
			MaxSize:    logMaxSize,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAge,
			Compress:   logCompress,
		},
		Storage: StorageConfig{
			Type:       getEnv("STORAGE_TYPE", "local"),
			UploadPath: getEnv("STORAGE_UPLOAD_PATH", "./uploads"),
			OutputPath: getEnv("STORAGE_OUTPUT_PATH", "./videos"),
			TempPath:   getEnv("STORAGE_TEMP_PATH", "./temp"),
			BasePath:   getEnv("STORAGE_BASE_PATH", "./storage"),
			BaseURL:    getEnv("STORAGE_BASE_URL", "http://localhost:8080/files"),
			FastTTL:    fastTTL,
			S3: S3Config{
				Endpoint:      getEnv("S3_ENDPOINT", "localhost:9000"),
				AccessKey:     getEnv("S3_ACCESS_KEY", "minioadmin"),
				SecretKey:     getEnv("S3_SECRET_KEY", "minioadmin"),
				FastBucket:    getEnv("S3_FAST_BUCKET", "veobatch-fast"),
				DurableBucket: getEnv("S3_DURABLE_BUCKET", "veobatch-archive"),
				UseSSL:        s3UseSSL,
				Region:        getEnv("S3_REGION", "auto"),
				FastPublicURL: getEnv("S3_FAST_PUBLIC_URL", ""),
			},
		},
		Flow: FlowConfig{
			DriverURL:        getEnv("FLOW_DRIVER_URL", "http://localhost:9400"),
			PollInterval:     pollInterval,
			MaxWait:          maxWait,
			OutputsPerPrompt: outputsPerPrompt,
		},
		Retry: RetryConfig{
			MaxAttempts: retryMax,
			Delay:       retryDelay,
		},
		Upscale: UpscaleConfig{
			FFmpegPath:    getEnv("FFMPEG_PATH", "ffmpeg"),
			FFprobePath:   getEnv("FFPROBE_PATH", "ffprobe"),
			DefaultPreset: getEnv("UPSCALE_DEFAULT_PRESET", "balanced"),
			TaskRetention: taskRetention,
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getDurationEnv อ่าน duration จาก env เช่น "2h", "180s"
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// IsDevelopment ตรวจสอบว่าเป็น development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction ตรวจสอบว่าเป็น production mode
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
