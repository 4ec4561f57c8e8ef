//go:build windows

package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// GetDiskInfo อ่านพื้นที่ disk ของ path (Windows)
// path ยังไม่ถูกสร้าง = วัดจาก parent แทน
func GetDiskInfo(path string) (*DiskInfo, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = filepath.Dir(path)
	}

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("failed to convert path: %w", err)
	}

	var freeAvailable, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &freeAvailable, &total, &totalFree); err != nil {
		return nil, fmt.Errorf("GetDiskFreeSpaceEx failed: %w", err)
	}

	used := total - totalFree

	return &DiskInfo{
		Total:       total,
		Free:        totalFree,
		Used:        used,
		UsedPercent: float64(used) / float64(total) * 100,
	}, nil
}
