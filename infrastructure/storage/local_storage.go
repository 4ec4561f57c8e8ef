package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"veobatch/domain/ports"
)

// LocalStorage implements StorageBackend บน local filesystem
// สำหรับ dev และ test - fast/durable เป็นคนละ subdirectory
type LocalStorage struct {
	basePath string
	baseURL  string // URL สำหรับเข้าถึงไฟล์ (เช่น http://localhost:8080/files)
}

type LocalStorageConfig struct {
	BasePath string // ./storage
	BaseURL  string // http://localhost:8080/files
}

// NewLocalStorage สร้าง LocalStorage instance
func NewLocalStorage(config LocalStorageConfig) (ports.StorageBackend, error) {
	for _, sub := range []string{"fast", "durable"} {
		if err := os.MkdirAll(filepath.Join(config.BasePath, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	return &LocalStorage{
		basePath: config.BasePath,
		baseURL:  strings.TrimSuffix(config.BaseURL, "/"),
	}, nil
}

// PutFast เขียนลง fast/ คืน URL
func (l *LocalStorage) PutFast(ctx context.Context, reader io.Reader, size int64, key, contentType string) (string, error) {
	key = normalizeKey(key)
	if err := l.writeFile(filepath.Join("fast", key), reader); err != nil {
		return "", err
	}
	return l.baseURL + "/fast/" + key, nil
}

// DeleteFast ลบไฟล์จาก fast/
func (l *LocalStorage) DeleteFast(ctx context.Context, key string) error {
	key = normalizeKey(key)
	fullPath := filepath.Join(l.basePath, "fast", key)

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		// ไม่มีอยู่แล้ว ถือว่าสำเร็จ
		return nil
	}
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	l.cleanupEmptyDirs(filepath.Dir(fullPath))
	return nil
}

// PutDurable เขียนลง durable/ คืน ref
func (l *LocalStorage) PutDurable(ctx context.Context, reader io.Reader, size int64, key, contentType string) (*ports.DurableObject, error) {
	key = normalizeKey(key)
	if err := l.writeFile(filepath.Join("durable", key), reader); err != nil {
		return nil, err
	}
	return &ports.DurableObject{
		Ref: key,
		URL: l.baseURL + "/durable/" + key,
	}, nil
}

// GetDurable copy ไฟล์จาก durable/ ไป destPath
func (l *LocalStorage) GetDurable(ctx context.Context, ref, destPath string) error {
	ref = normalizeKey(ref)
	src, err := os.Open(filepath.Join(l.basePath, "durable", ref))
	if err != nil {
		return fmt.Errorf("failed to open durable object: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination dir: %w", err)
	}
	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to copy durable object: %w", err)
	}
	return nil
}

// GetFast อ่านไฟล์จาก fast/
func (l *LocalStorage) GetFast(ctx context.Context, key string) (io.ReadCloser, error) {
	key = normalizeKey(key)
	file, err := os.Open(filepath.Join(l.basePath, "fast", key))
	if err != nil {
		return nil, fmt.Errorf("failed to open fast object: %w", err)
	}
	return file, nil
}

// GetProviderName return ชื่อ provider
func (l *LocalStorage) GetProviderName() string {
	return "local"
}

func (l *LocalStorage) writeFile(relPath string, reader io.Reader) error {
	fullPath := filepath.Join(l.basePath, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, reader); err != nil {
		// ลบไฟล์ที่เขียนไม่สำเร็จ
		os.Remove(fullPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// cleanupEmptyDirs ลบ directory ว่างๆ ขึ้นไปจนถึง basePath
func (l *LocalStorage) cleanupEmptyDirs(dir string) {
	absBase, _ := filepath.Abs(l.basePath)
	absDir, _ := filepath.Abs(dir)

	for absDir != absBase && strings.HasPrefix(absDir, absBase) {
		entries, err := os.ReadDir(absDir)
		if err != nil || len(entries) > 0 {
			break
		}
		os.Remove(absDir)
		absDir = filepath.Dir(absDir)
	}
}
