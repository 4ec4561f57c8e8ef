package services

// StorageStats ภาพรวมการใช้ดิสก์ของ workspace
type StorageStats struct {
	DiskTotal       uint64  `json:"disk_total"`
	DiskFree        uint64  `json:"disk_free"`
	DiskUsed        uint64  `json:"disk_used"`
	DiskUsedPercent float64 `json:"disk_used_percent"`

	OutputsSize int64 `json:"outputs_size"`
	UploadsSize int64 `json:"uploads_size"`
	TempSize    int64 `json:"temp_size"`

	JobFolderCount int `json:"job_folder_count"`
}
