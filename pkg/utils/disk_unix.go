//go:build !windows

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// GetDiskInfo อ่านพื้นที่ disk ของ path (Unix/Linux)
// path ยังไม่ถูกสร้าง = วัดจาก parent แทน
func GetDiskInfo(path string) (*DiskInfo, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = filepath.Dir(path)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil, fmt.Errorf("statfs failed: %w", err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	used := total - free

	return &DiskInfo{
		Total:       total,
		Free:        free,
		Used:        used,
		UsedPercent: float64(used) / float64(total) * 100,
	}, nil
}
