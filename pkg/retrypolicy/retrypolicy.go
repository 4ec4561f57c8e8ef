package retrypolicy

import (
	"time"

	"veobatch/domain/models"
)

// Policy นโยบาย retry: เฉพาะ HIGH_DEMAND เท่านั้นที่ retry ได้
// delay คงที่ ไม่ exponential เพราะ demand spike คลายตัวตามเวลาของมันเอง
// ไม่ได้ scale ตามจำนวน attempt
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Decision ผลการตัดสิน retry หนึ่งครั้ง
type Decision struct {
	Retry bool
	Delay time.Duration // 0 เมื่อ terminal
}

// Default ค่าตาม production: 5 ครั้ง คั่นครั้งละ 180 วินาที
func Default() Policy {
	return Policy{
		MaxAttempts: 5,
		Delay:       180 * time.Second,
	}
}

// Decide ตัดสินจากหมวด error และจำนวน attempt ที่ fail ไปก่อนหน้า
// attemptsSoFar ไม่รวม attempt ที่เพิ่ง fail - MaxAttempts 5 = retry ได้ 5 รอบ
// ก่อน attempt ที่ 6 กลายเป็น terminal
func (p Policy) Decide(errType models.ErrorType, attemptsSoFar int) Decision {
	if errType != models.ErrorTypeHighDemand {
		return Decision{Retry: false}
	}
	if attemptsSoFar >= p.MaxAttempts {
		return Decision{Retry: false}
	}
	return Decision{Retry: true, Delay: p.Delay}
}
