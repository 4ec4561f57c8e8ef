package ports

import (
	"context"
	"io"
)

// DurableObject ผลจากการเขียนลง durable tier
type DurableObject struct {
	Ref string // reference ถาวร ใช้ดึงไฟล์กลับมาได้ตลอด
	URL string // URL สำหรับเข้าถึง (อาจว่างถ้า bucket เป็น private)
}

// StorageBackend สอง tier:
// fast tier เก็บชั่วคราวเพื่อ serve UI ทันที (ถูกลบตาม TTL)
// durable tier เก็บถาวร - พอได้ Ref กลับมาแล้วถือว่าไฟล์อยู่ยาว
type StorageBackend interface {
	// PutFast เขียนลง fast tier คืน URL ที่ UI ใช้ได้ทันที
	PutFast(ctx context.Context, reader io.Reader, size int64, key, contentType string) (string, error)

	// DeleteFast ลบ object จาก fast tier (เรียกตอน TTL หมด)
	DeleteFast(ctx context.Context, key string) error

	// PutDurable เขียนลง durable tier
	PutDurable(ctx context.Context, reader io.Reader, size int64, key, contentType string) (*DurableObject, error)

	// GetDurable ดึง object จาก durable tier ลงไฟล์ local
	GetDurable(ctx context.Context, ref, destPath string) error

	// GetFast อ่าน object จาก fast tier (สำหรับ bulk download)
	GetFast(ctx context.Context, key string) (io.ReadCloser, error)

	// GetProviderName ชื่อ provider (local, s3)
	GetProviderName() string
}
