package domain

import (
	"gopkg.in/guregu/null.v4"
	"time"
)

type AuditDecision string

const (
	AuditAllow AuditDecision = "ALLOW"
	AuditDeny  AuditDecision = "DENY"
	AuditInfo  AuditDecision = "INFO"
	AuditError AuditDecision = "ERROR"
)

// Loại sự kiện audit. Mỗi quyết định rào chắn và mỗi bước vòng đời
// mã truy cập đều được ghi lại.
const (
	AuditEntryCheck      = "barrier_entry_check"
	AuditExitCheck       = "barrier_exit_check"
	AuditBarrierOpen     = "barrier_open"
	AuditBarrierClose    = "barrier_close"
	AuditCodeGenerated   = "access_code_generated"
	AuditCodeUsed        = "access_code_used"
	AuditCodeInvalidated = "access_code_invalidated"
	AuditReservation     = "reservation"
	AuditRelease         = "reservation_release"
	AuditExtend          = "reservation_extend"
	AuditPayment         = "payment"
	AuditSweep           = "scheduler_sweep"
)

// AuditLog là một dòng nhật ký bất biến. MaskedCode chỉ giữ ký tự đầu
// của mã truy cập ("A**"), không bao giờ ghi mã đầy đủ.
type AuditLog struct {
	ID         int           `json:"id"`
	EventType  string        `json:"event_type"`
	Decision   AuditDecision `json:"decision"`
	Reason     string        `json:"reason,omitempty"`
	SpotID     null.String   `json:"spot_id"`
	UserEmail  null.String   `json:"user_email"`
	MaskedCode null.String   `json:"masked_code"`
	BarrierID  null.String   `json:"barrier_id"`
	Detail     null.String   `json:"detail"`
	CreatedAt  time.Time     `json:"created_at"`
}

// AuditQuery lọc khi đọc nhật ký. Zero value = không lọc theo trường đó.
type AuditQuery struct {
	EventType string
	Decision  AuditDecision
	SpotID    string
	Limit     int
}
