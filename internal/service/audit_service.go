package service

import (
	"context"
	"log"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"gopkg.in/guregu/null.v4"
)

// AuditService ghi nhật ký bất biến cho mọi quyết định truy cập và bước
// vòng đời mã. Ghi audit là best-effort: lỗi chỉ được log, không bao giờ
// chặn luồng nghiệp vụ.
type AuditService struct {
	auditRepo repository.AuditLogRepository
}

func NewAuditService(auditRepo repository.AuditLogRepository) *AuditService {
	return &AuditService{auditRepo: auditRepo}
}

// MaskCode giữ ký tự đầu, che phần còn lại: "A7K" -> "A**".
// Mã đầy đủ không bao giờ xuất hiện trong log hay audit.
func MaskCode(code string) string {
	if code == "" {
		return ""
	}
	masked := []rune(code)
	for i := 1; i < len(masked); i++ {
		masked[i] = '*'
	}
	return string(masked)
}

type AuditEntry struct {
	EventType string
	Decision  domain.AuditDecision
	Reason    string
	SpotID    string
	UserEmail string
	Code      string // mã thô, sẽ được mask trước khi ghi
	BarrierID string
	Detail    string
}

func (s *AuditService) Record(ctx context.Context, e AuditEntry) {
	entry := &domain.AuditLog{
		EventType:  e.EventType,
		Decision:   e.Decision,
		Reason:     e.Reason,
		SpotID:     null.NewString(e.SpotID, e.SpotID != ""),
		UserEmail:  null.NewString(e.UserEmail, e.UserEmail != ""),
		MaskedCode: null.NewString(MaskCode(e.Code), e.Code != ""),
		BarrierID:  null.NewString(e.BarrierID, e.BarrierID != ""),
		Detail:     null.NewString(e.Detail, e.Detail != ""),
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		log.Printf("Lỗi ghi audit log (event=%s): %v", e.EventType, err)
	}
}

func (s *AuditService) Query(ctx context.Context, q domain.AuditQuery) ([]domain.AuditLog, error) {
	return s.auditRepo.Find(ctx, q)
}
