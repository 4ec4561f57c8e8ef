package services

import "errors"

var (
	// ErrNotFound record ที่ขอไม่มีอยู่
	ErrNotFound = errors.New("not found")

	// ErrAlreadyRunning job กำลังรันอยู่แล้ว - start ซ้ำเป็น no-op ไม่ใช่ error จริง
	ErrAlreadyRunning = errors.New("job already running")

	// ErrInvalidState operation ไม่ valid กับสถานะปัจจุบัน
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrMissingInputs job ยังไม่มี images/prompts ครบ
	ErrMissingInputs = errors.New("job inputs not uploaded")
)
