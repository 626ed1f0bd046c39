package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"github.com/google/uuid"
)

// PaymentApprover quyết định một yêu cầu thanh toán được chấp nhận hay không
// trước khi giữ chỗ.
type PaymentApprover interface {
	Charge(ctx context.Context, req PaymentRequest) (*domain.Payment, error)
}

type PaymentRequest struct {
	UserID          string
	UserEmail       string
	SpotID          string
	DurationMinutes int
	SimulateFailure bool
}

// PaymentService là simulator: luôn approve trừ khi client yêu cầu giả lập
// thất bại. Mỗi giao dịch (kể cả declined) đều được lưu lại.
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	audit       *AuditService
}

func NewPaymentService(paymentRepo repository.PaymentRepository, audit *AuditService) *PaymentService {
	return &PaymentService{paymentRepo: paymentRepo, audit: audit}
}

func (s *PaymentService) Charge(ctx context.Context, req PaymentRequest) (*domain.Payment, error) {
	payment := &domain.Payment{
		PaymentID:      "PAY-" + strings.ToUpper(uuid.NewString()[:8]),
		TransactionRef: "TXN-" + strings.ToUpper(uuid.NewString()[:12]),
		UserID:         req.UserID,
		UserEmail:      req.UserEmail,
		SpotID:         req.SpotID,
		Amount:         domain.AmountForDuration(req.DurationMinutes),
		Currency:       "USD",
		DurationMin:    req.DurationMinutes,
		Status:         domain.PaymentApproved,
	}
	if req.SimulateFailure {
		payment.Status = domain.PaymentDeclined
		payment.FailureReason = "thanh toán bị từ chối (giả lập)"
	}

	created, err := s.paymentRepo.Create(ctx, payment)
	if err != nil {
		return nil, fmt.Errorf("lỗi lưu giao dịch thanh toán: %w", err)
	}

	decision := domain.AuditAllow
	if created.Status == domain.PaymentDeclined {
		decision = domain.AuditDeny
	}
	s.audit.Record(ctx, AuditEntry{
		EventType: domain.AuditPayment,
		Decision:  decision,
		Reason:    string(created.Status),
		SpotID:    created.SpotID,
		UserEmail: created.UserEmail,
		Detail:    fmt.Sprintf("payment_id=%s amount=%.2f %s", created.PaymentID, created.Amount, created.Currency),
	})
	log.Printf("Thanh toán %s: %s, %.2f %s cho chỗ '%s' (%d phút)",
		created.PaymentID, created.Status, created.Amount, created.Currency, created.SpotID, created.DurationMin)
	return created, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.paymentRepo.FindByID(ctx, paymentID)
}

func (s *PaymentService) GetUserPayments(ctx context.Context, userID string, limit int) ([]domain.Payment, error) {
	return s.paymentRepo.FindByUserID(ctx, userID, limit)
}
