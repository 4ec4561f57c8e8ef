package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[<>:"|?*\x00-\x1f\x7f]`)

// SanitizeFileName ตัด path component กับอักขระอันตรายออกจากชื่อไฟล์ที่ client ส่งมา
// ก่อนเอาไปใช้เป็นชื่อไฟล์ temp ตอนรับ upload
func SanitizeFileName(filename string) string {
	filename = filepath.Base(filename)
	filename = unsafeFilenameChars.ReplaceAllString(filename, "_")
	filename = strings.TrimSpace(filename)

	if filename == "" || filename == "." || filename == ".." {
		filename = "file"
	}

	return filename
}
