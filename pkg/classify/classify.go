package classify

import (
	"strings"

	"veobatch/domain/models"
)

// rule จับ substring (case-insensitive) แล้ว map เป็น ErrorType
// ทุก pattern ใน Contains ต้องเจอครบถึงจะ match
type rule struct {
	Contains []string
	Any      []string // match ถ้าเจออย่างน้อยหนึ่งตัว
	Type     models.ErrorType
}

// rules เรียงตามลำดับความสำคัญ ตัวแรกที่ match ชนะ
// เพิ่ม failure signature ใหม่ที่นี่ ไม่ต้องแตะ caller
var rules = []rule{
	{Any: []string{"high demand", "busy"}, Type: models.ErrorTypeHighDemand},
	{Any: []string{"prominent people"}, Type: models.ErrorTypeProminentPeople},
	{Any: []string{"policy", "violation"}, Type: models.ErrorTypePolicyViolation},
	{Contains: []string{"content", "filter"}, Type: models.ErrorTypeContentFilter},
	{Any: []string{"network", "connection", "timed out"}, Type: models.ErrorTypeNetworkError},
	{Any: []string{"download"}, Type: models.ErrorTypeDownloadError},
}

// Classify map ข้อความ error ดิบจาก driver เป็นหมวด
// pure function, default UNKNOWN
func Classify(rawMessage string) models.ErrorType {
	msg := strings.ToLower(rawMessage)

	for _, r := range rules {
		if r.matches(msg) {
			return r.Type
		}
	}
	return models.ErrorTypeUnknown
}

func (r rule) matches(msg string) bool {
	for _, p := range r.Contains {
		if !strings.Contains(msg, p) {
			return false
		}
	}
	if len(r.Any) == 0 {
		return len(r.Contains) > 0
	}
	for _, p := range r.Any {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTerminalContent หมวดที่ user แก้ได้ด้วยการแก้ prompt แล้ว regenerate
func IsTerminalContent(t models.ErrorType) bool {
	switch t {
	case models.ErrorTypeProminentPeople, models.ErrorTypePolicyViolation, models.ErrorTypeContentFilter:
		return true
	}
	return false
}
