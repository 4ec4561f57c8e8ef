package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"veobatch/domain/ports"
	"veobatch/pkg/logger"
)

// S3Storage implements StorageBackend ด้วยสอง bucket (MinIO / Cloudflare R2)
// fastBucket เก็บชั่วคราว serve UI, durableBucket เก็บถาวร
type S3Storage struct {
	client        *minio.Client
	fastBucket    string
	durableBucket string
	fastPublicURL string
	endpoint      string
	useSSL        bool
}

type S3StorageConfig struct {
	Endpoint      string // minio:9000 หรือ xxx.r2.cloudflarestorage.com
	AccessKey     string
	SecretKey     string
	FastBucket    string
	DurableBucket string
	UseSSL        bool
	Region        string
	FastPublicURL string // URL สำหรับเข้าถึง fast bucket (optional)
}

// NewS3Storage สร้าง S3Storage instance และ ensure ทั้งสอง bucket
func NewS3Storage(config S3StorageConfig) (ports.StorageBackend, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 50,
		MaxConnsPerHost:     100,
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure:    config.UseSSL,
		Region:    config.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, bucket := range []string{config.FastBucket, config.DurableBucket} {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}
		if !exists {
			err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{
				Region: config.Region,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
			logger.Info("S3 bucket created", "bucket", bucket)
		}
	}

	logger.Info("S3 storage initialized",
		"endpoint", config.Endpoint,
		"fast_bucket", config.FastBucket,
		"durable_bucket", config.DurableBucket,
		"ssl", config.UseSSL,
	)

	return &S3Storage{
		client:        client,
		fastBucket:    config.FastBucket,
		durableBucket: config.DurableBucket,
		fastPublicURL: strings.TrimSuffix(config.FastPublicURL, "/"),
		endpoint:      config.Endpoint,
		useSSL:        config.UseSSL,
	}, nil
}

// PutFast เขียนลง fast bucket คืน URL ที่เข้าถึงได้ทันที
func (s *S3Storage) PutFast(ctx context.Context, reader io.Reader, size int64, key, contentType string) (string, error) {
	key = normalizeKey(key)

	_, err := s.client.PutObject(ctx, s.fastBucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to fast tier: %w", err)
	}

	logger.Debug("Object uploaded to fast tier", "key", key)
	return s.fastURL(key), nil
}

// DeleteFast ลบ object จาก fast bucket
func (s *S3Storage) DeleteFast(ctx context.Context, key string) error {
	key = normalizeKey(key)

	err := s.client.RemoveObject(ctx, s.fastBucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete from fast tier: %w", err)
	}

	logger.Debug("Object deleted from fast tier", "key", key)
	return nil
}

// PutDurable เขียนลง durable bucket คืน ref ถาวร
func (s *S3Storage) PutDurable(ctx context.Context, reader io.Reader, size int64, key, contentType string) (*ports.DurableObject, error) {
	key = normalizeKey(key)

	_, err := s.client.PutObject(ctx, s.durableBucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to durable tier: %w", err)
	}

	logger.Debug("Object uploaded to durable tier", "key", key)

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return &ports.DurableObject{
		Ref: key,
		URL: fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.durableBucket, key),
	}, nil
}

// GetDurable ดึง object จาก durable bucket ลงไฟล์ local
func (s *S3Storage) GetDurable(ctx context.Context, ref, destPath string) error {
	ref = normalizeKey(ref)

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination dir: %w", err)
	}

	err := s.client.FGetObject(ctx, s.durableBucket, ref, destPath, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to download from durable tier: %w", err)
	}
	return nil
}

// GetFast อ่าน object จาก fast bucket
func (s *S3Storage) GetFast(ctx context.Context, key string) (io.ReadCloser, error) {
	key = normalizeKey(key)

	obj, err := s.client.GetObject(ctx, s.fastBucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from fast tier: %w", err)
	}

	// GetObject ขี้เกียจ: ต้อง Stat เพื่อเช็คว่า object มีจริง
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to stat fast object: %w", err)
	}
	return obj, nil
}

// GetProviderName return ชื่อ provider
func (s *S3Storage) GetProviderName() string {
	return "s3"
}

func (s *S3Storage) fastURL(key string) string {
	if s.fastPublicURL != "" {
		return s.fastPublicURL + "/" + key
	}
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.fastBucket, key)
}

func normalizeKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	return strings.ReplaceAll(key, "\\", "/")
}
