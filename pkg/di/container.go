package di

import (
	"context"
	"fmt"
	"os"

	"veobatch/application/serviceimpl"
	"veobatch/domain/ports"
	"veobatch/domain/repositories"
	"veobatch/domain/services"
	"veobatch/infrastructure/automation"
	"veobatch/infrastructure/messaging"
	natspkg "veobatch/infrastructure/nats"
	"veobatch/infrastructure/postgres"
	redispkg "veobatch/infrastructure/redis"
	"veobatch/infrastructure/storage"
	"veobatch/infrastructure/transcoder"
	"veobatch/interfaces/api/handlers"
	"veobatch/pkg/config"
	"veobatch/pkg/logger"
	"veobatch/pkg/scheduler"
	"veobatch/pkg/tasks"

	"gorm.io/gorm"
)

type Container struct {
	Config *config.Config

	// Infrastructure
	DB             *gorm.DB
	RedisClient    *redispkg.Client // cache + cross-process run lock (optional)
	NATSClient     *natspkg.Client  // progress events (optional)
	Storage        ports.StorageBackend
	Driver         ports.AutomationDriver
	Upscaler       ports.UpscalerPort
	EventScheduler scheduler.EventScheduler
	TaskStore      *tasks.Store

	// Repositories
	JobRepository   repositories.JobRepository
	VideoRepository repositories.VideoRepository

	// Services
	JobService        services.JobService
	UploadService     services.UploadService
	VideoService      services.VideoService
	GenerationService services.GenerationService
	UpscaleService    services.UpscaleService
	StorageWorkflow   services.StorageWorkflow
	CleanupService    *serviceimpl.StorageCleanupService
	StuckDetector     *serviceimpl.StuckDetectorService

	// Messaging
	ProgressPublisher ports.ProgressPublisherPort
}

func NewContainer() *Container {
	return &Container{}
}

func (c *Container) Initialize() error {
	if err := c.initConfig(); err != nil {
		return err
	}

	if err := c.initLogger(); err != nil {
		return err
	}

	if err := c.initInfrastructure(); err != nil {
		return err
	}

	if err := c.initRepositories(); err != nil {
		return err
	}

	if err := c.initServices(); err != nil {
		return err
	}

	if err := c.initScheduler(); err != nil {
		return err
	}

	return nil
}

func (c *Container) initConfig() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	c.Config = cfg
	logger.Info("Configuration loaded")
	return nil
}

func (c *Container) initLogger() error {
	logConfig := logger.Config{
		Level:      c.Config.Log.Level,
		Format:     c.Config.Log.Format,
		Output:     c.Config.Log.Output,
		FilePath:   c.Config.Log.FilePath,
		MaxSize:    c.Config.Log.MaxSize,
		MaxBackups: c.Config.Log.MaxBackups,
		MaxAge:     c.Config.Log.MaxAge,
		Compress:   c.Config.Log.Compress,
	}

	if err := logger.Init(logConfig); err != nil {
		return err
	}

	logger.Info("Logger initialized",
		"level", c.Config.Log.Level,
		"format", c.Config.Log.Format,
		"output", c.Config.Log.Output,
	)
	return nil
}

func (c *Container) initInfrastructure() error {
	dbConfig := postgres.DatabaseConfig{
		Host:     c.Config.Database.Host,
		Port:     c.Config.Database.Port,
		User:     c.Config.Database.User,
		Password: c.Config.Database.Password,
		DBName:   c.Config.Database.DBName,
		SSLMode:  c.Config.Database.SSLMode,
	}

	db, err := postgres.NewDatabase(dbConfig)
	if err != nil {
		return err
	}
	c.DB = db
	logger.Info("Database connected", "host", c.Config.Database.Host, "db", c.Config.Database.DBName)

	if err := postgres.Migrate(db); err != nil {
		return err
	}
	logger.Info("Database migrated")

	// Redis optional - ไม่มีก็รันได้ แค่ไม่มี cache กับ cross-process lock
	if c.Config.Redis.URL != "" {
		redisClient, err := redispkg.NewClient(&c.Config.Redis)
		if err != nil {
			logger.Warn("Redis client initialization failed (cache disabled)", "error", err)
		} else {
			c.RedisClient = redisClient
			logger.Info("Redis client initialized", "url", c.Config.Redis.URL)
		}
	}

	// NATS optional - progress events เป็น best effort
	natsClient, err := natspkg.NewClient(natspkg.ClientConfig{URL: c.Config.NATS.URL})
	if err != nil {
		logger.Warn("NATS client initialization failed (progress events disabled)", "error", err)
	} else {
		c.NATSClient = natsClient
		c.ProgressPublisher = messaging.NewNATSProgressPublisher(natsClient.Conn())
		logger.Info("NATS client initialized", "url", c.Config.NATS.URL)
	}

	if err := c.initStorage(); err != nil {
		return err
	}

	// สร้างโฟลเดอร์ working dirs ให้ครบตั้งแต่ boot
	for _, dir := range []string{c.Config.Storage.UploadPath, c.Config.Storage.OutputPath, c.Config.Storage.TempPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create working directory %s: %w", dir, err)
		}
	}

	// Automation driver sidecar
	c.Driver = automation.NewFlowClient(automation.FlowClientConfig{
		BaseURL: c.Config.Flow.DriverURL,
	})
	logger.Info("Automation driver client initialized", "url", c.Config.Flow.DriverURL)

	// FFmpeg upscaler - ไม่มี ffmpeg ก็รันได้ แค่ upscale จะ fail ตอนสั่ง
	upscaler, err := transcoder.NewFFmpegUpscaler(transcoder.FFmpegConfig{
		FFmpegPath:  c.Config.Upscale.FFmpegPath,
		FFprobePath: c.Config.Upscale.FFprobePath,
	})
	if err != nil {
		logger.Warn("FFmpeg not available, upscaling will be disabled", "error", err)
	} else {
		c.Upscaler = upscaler
		logger.Info("FFmpeg upscaler initialized", "path", c.Config.Upscale.FFmpegPath)
	}

	c.TaskStore = tasks.NewStore()

	return nil
}

// initStorage สร้าง storage backend ตาม config
func (c *Container) initStorage() error {
	switch c.Config.Storage.Type {
	case "s3":
		s3Config := storage.S3StorageConfig{
			Endpoint:      c.Config.Storage.S3.Endpoint,
			AccessKey:     c.Config.Storage.S3.AccessKey,
			SecretKey:     c.Config.Storage.S3.SecretKey,
			FastBucket:    c.Config.Storage.S3.FastBucket,
			DurableBucket: c.Config.Storage.S3.DurableBucket,
			UseSSL:        c.Config.Storage.S3.UseSSL,
			Region:        c.Config.Storage.S3.Region,
			FastPublicURL: c.Config.Storage.S3.FastPublicURL,
		}
		s3Storage, err := storage.NewS3Storage(s3Config)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		c.Storage = s3Storage
		logger.Info("S3 storage initialized",
			"endpoint", c.Config.Storage.S3.Endpoint,
			"fast_bucket", c.Config.Storage.S3.FastBucket,
			"durable_bucket", c.Config.Storage.S3.DurableBucket,
		)

	default:
		localConfig := storage.LocalStorageConfig{
			BasePath: c.Config.Storage.BasePath,
			BaseURL:  c.Config.Storage.BaseURL,
		}
		localStorage, err := storage.NewLocalStorage(localConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize local storage: %w", err)
		}
		c.Storage = localStorage
		logger.Info("Local storage initialized", "path", c.Config.Storage.BasePath)
	}

	return nil
}

func (c *Container) initRepositories() error {
	c.JobRepository = postgres.NewJobRepository(c.DB)
	c.VideoRepository = postgres.NewVideoRepository(c.DB)
	logger.Info("Repositories initialized")
	return nil
}

func (c *Container) initServices() error {
	c.StorageWorkflow = serviceimpl.NewStorageWorkflow(c.Storage, c.VideoRepository, c.Config.Storage.FastTTL)

	c.GenerationService = serviceimpl.NewGenerationService(
		c.JobRepository,
		c.VideoRepository,
		c.Driver,
		c.StorageWorkflow,
		c.ProgressPublisher,
		c.RedisClient,
		c.Config,
	)

	c.JobService = serviceimpl.NewJobService(c.JobRepository, c.GenerationService, c.RedisClient, c.Config)
	c.UploadService = serviceimpl.NewUploadService(c.JobRepository, c.VideoRepository, c.Config)
	c.VideoService = serviceimpl.NewVideoService(c.VideoRepository, c.Storage, c.Config.Storage.TempPath)

	if c.Upscaler != nil {
		c.UpscaleService = serviceimpl.NewUpscaleService(
			c.VideoRepository,
			c.Upscaler,
			c.StorageWorkflow,
			c.Storage,
			c.TaskStore,
			c.Config,
		)
		logger.Info("Upscale service initialized")
	} else {
		logger.Warn("Upscale service disabled (FFmpeg not available)")
	}

	logger.Info("Services initialized")
	return nil
}

func (c *Container) initScheduler() error {
	c.EventScheduler = scheduler.NewEventScheduler()

	// ปิด jobs ที่ค้าง processing จาก process รอบก่อน ก่อนรับงานใหม่
	c.StuckDetector = serviceimpl.NewStuckDetectorService(
		serviceimpl.StuckDetectorConfig{
			GeneratingTimeout: c.Config.Flow.MaxWait + c.Config.Flow.PollInterval*10,
		},
		c.JobRepository,
		c.VideoRepository,
		c.EventScheduler,
	)
	c.StuckDetector.RecoverOnStartup(context.Background())

	if err := c.StuckDetector.RegisterDetectorJob(); err != nil {
		logger.Warn("Failed to register stuck detector job", "error", err)
	}

	c.CleanupService = serviceimpl.NewStorageCleanupService(
		serviceimpl.StorageCleanupConfig{
			UploadPath:    c.Config.Storage.UploadPath,
			OutputPath:    c.Config.Storage.OutputPath,
			TempPath:      c.Config.Storage.TempPath,
			TaskRetention: c.Config.Upscale.TaskRetention,
		},
		c.JobRepository,
		c.TaskStore,
		c.EventScheduler,
	)
	if err := c.CleanupService.RegisterCleanupJob(); err != nil {
		logger.Warn("Failed to register storage cleanup job", "error", err)
	}

	// เก็บกวาด fast tier objects ที่ timer หายหลัง restart
	err := c.EventScheduler.AddJob("fast_tier_sweep", "@every 10m", func() {
		if err := c.StorageWorkflow.SweepExpired(context.Background()); err != nil {
			logger.Warn("Fast tier sweep failed", "error", err)
		}
	})
	if err != nil {
		logger.Warn("Failed to register fast tier sweep job", "error", err)
	}

	c.EventScheduler.Start()
	logger.Info("Event scheduler started")

	return nil
}

func (c *Container) Cleanup() error {
	logger.Info("Starting cleanup...")

	if c.EventScheduler != nil && c.EventScheduler.IsRunning() {
		c.EventScheduler.Stop()
		logger.Info("Event scheduler stopped")
	}

	if c.NATSClient != nil {
		if err := c.NATSClient.Close(); err != nil {
			logger.Warn("Failed to close NATS connection", "error", err)
		} else {
			logger.Info("NATS connection closed")
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			logger.Warn("Failed to close Redis connection", "error", err)
		} else {
			logger.Info("Redis connection closed")
		}
	}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("Failed to close database connection", "error", err)
			} else {
				logger.Info("Database connection closed")
			}
		}
	}

	logger.Info("Cleanup completed")
	return nil
}

func (c *Container) GetConfig() *config.Config {
	return c.Config
}

func (c *Container) GetHandlerServices() *handlers.Services {
	return &handlers.Services{
		JobService:        c.JobService,
		UploadService:     c.UploadService,
		VideoService:      c.VideoService,
		GenerationService: c.GenerationService,
		UpscaleService:    c.UpscaleService,
		CleanupService:    c.CleanupService,
		TempPath:          c.Config.Storage.TempPath,
	}
}
