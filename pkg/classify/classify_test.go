package classify

import (
	"testing"

	"veobatch/domain/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want models.ErrorType
	}{
		{"high demand", "Flow is experiencing high demand", models.ErrorTypeHighDemand},
		{"busy", "The model is BUSY right now", models.ErrorTypeHighDemand},
		{"prominent people", "Prompt mentions prominent people", models.ErrorTypeProminentPeople},
		{"policy", "This violates our content policy", models.ErrorTypePolicyViolation},
		{"violation alone", "Violation detected", models.ErrorTypePolicyViolation},
		{"content filter", "Blocked by the content safety filter", models.ErrorTypeContentFilter},
		{"content without filter", "content unavailable right now", models.ErrorTypeUnknown},
		{"network", "network unreachable", models.ErrorTypeNetworkError},
		{"connection", "connection reset by peer", models.ErrorTypeNetworkError},
		{"download", "download failed after 3 chunks", models.ErrorTypeDownloadError},
		{"unknown", "something completely different", models.ErrorTypeUnknown},
		{"empty", "", models.ErrorTypeUnknown},
		{"case insensitive", "HIGH DEMAND", models.ErrorTypeHighDemand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.msg)
			if got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.msg, got, tt.want)
			}
		})
	}
}

// ลำดับ rule สำคัญ: high demand ต้องชนะแม้ข้อความมีคำอื่นปน
func TestClassifyOrder(t *testing.T) {
	got := Classify("high demand caused a policy timeout")
	if got != models.ErrorTypeHighDemand {
		t.Errorf("first matching rule should win, got %s", got)
	}

	// prominent people มาก่อน policy ทั่วไป
	got = Classify("prompt violates policy about prominent people")
	if got != models.ErrorTypeProminentPeople {
		t.Errorf("prominent people should match before policy, got %s", got)
	}
}

func TestIsTerminalContent(t *testing.T) {
	terminal := []models.ErrorType{
		models.ErrorTypeProminentPeople,
		models.ErrorTypePolicyViolation,
		models.ErrorTypeContentFilter,
	}
	for _, et := range terminal {
		if !IsTerminalContent(et) {
			t.Errorf("%s should be terminal content", et)
		}
	}
	if IsTerminalContent(models.ErrorTypeHighDemand) {
		t.Error("HIGH_DEMAND is not a content error")
	}
	if IsTerminalContent(models.ErrorTypeNetworkError) {
		t.Error("NETWORK_ERROR is not a content error")
	}
}
