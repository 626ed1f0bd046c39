package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
)

// Bảng ký tự cho mã truy cập: chữ hoa và chữ số, 36 ký tự.
const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 3

// Số lần thử tối đa khi mã sinh ra đụng mã active khác.
const maxCodeAttempts = 20

// ErrCodeSpaceExhausted trả về khi không sinh được mã duy nhất sau
// maxCodeAttempts lần: gần như toàn bộ không gian 36^3 mã đang active.
var ErrCodeSpaceExhausted = errors.New("không thể sinh mã truy cập duy nhất, không gian mã gần cạn")

// AccessCodeService quản lý vòng đời mã truy cập 3 ký tự: sinh, xác thực
// one-shot và vô hiệu hóa.
type AccessCodeService struct {
	codeRepo repository.AccessCodeRepository
	audit    *AuditService
	notifier domain.Notifier
	nowFn    func() time.Time
}

func NewAccessCodeService(codeRepo repository.AccessCodeRepository, audit *AuditService, notifier domain.Notifier) *AccessCodeService {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &AccessCodeService{codeRepo: codeRepo, audit: audit, notifier: notifier, nowFn: time.Now}
}

// publishCodeEvent đẩy thay đổi trạng thái mã lên feed, mã đã che.
func (s *AccessCodeService) publishCodeEvent(eventType string, code *domain.AccessCode, status domain.AccessCodeStatus) {
	s.notifier.Publish(domain.Event{
		Type: eventType,
		Payload: domain.AccessCodeEvent{
			Code:          MaskCode(code.Code),
			ReservationID: code.ReservationID,
			SpotID:        code.SpotID,
			Status:        status,
		},
		Timestamp: s.nowFn().UTC(),
	})
}

func randomCode() (string, error) {
	b := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("lỗi sinh ký tự ngẫu nhiên: %w", err)
		}
		b[i] = codeCharset[n.Int64()]
	}
	return string(b), nil
}

// Generate sinh và lưu một mã active cho đặt chỗ. Đụng độ với mã active
// khác thì thử lại, tối đa maxCodeAttempts lần.
func (s *AccessCodeService) Generate(ctx context.Context, res *domain.Reservation) (*domain.AccessCode, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		value, err := randomCode()
		if err != nil {
			return nil, err
		}
		code, err := s.codeRepo.Create(ctx, &domain.AccessCode{
			Code:          value,
			ReservationID: res.ID,
			SpotID:        res.SpotID,
			UserID:        res.UserID,
			UserEmail:     res.UserEmail,
			ExpiresAt:     res.EndTime,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				continue
			}
			return nil, err
		}
		s.audit.Record(ctx, AuditEntry{
			EventType: domain.AuditCodeGenerated,
			Decision:  domain.AuditInfo,
			SpotID:    res.SpotID,
			UserEmail: res.UserEmail,
			Code:      code.Code,
			Detail:    "reservation_id=" + res.ID,
		})
		s.publishCodeEvent(domain.EventCodeIssued, code, domain.CodeActive)
		log.Printf("Đã sinh mã truy cập %s cho đặt chỗ %s (chỗ '%s')", MaskCode(code.Code), res.ID, res.SpotID)
		return code, nil
	}
	return nil, ErrCodeSpaceExhausted
}

// Validate xác thực và tiêu thụ một mã tại rào chắn. Thứ tự kiểm tra cố
// định: hiện diện xe trước, giá trị mã sau — xe chưa đứng trước rào thì mã
// không bị tiêu thụ.
func (s *AccessCodeService) Validate(ctx context.Context, req domain.ValidateCodeRequest) (*domain.AccessDecision, error) {
	now := s.nowFn().UTC()
	// Bàn phím rào chắn có thể gửi chữ thường hoặc kèm khoảng trắng.
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))

	if !req.SensorPresence {
		decision := &domain.AccessDecision{
			Granted: false,
			Reason:  domain.ReasonNoVehicle,
			Message: "không phát hiện xe trước rào chắn",
		}
		s.recordDecision(ctx, req, decision)
		return decision, nil
	}

	latest, err := s.codeRepo.FindLatestByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			decision := &domain.AccessDecision{
				Granted: false,
				Reason:  domain.ReasonInvalidCode,
				Message: "mã truy cập không tồn tại",
			}
			s.recordDecision(ctx, req, decision)
			return decision, nil
		}
		return nil, fmt.Errorf("lỗi tra cứu mã truy cập: %w", err)
	}

	if latest.Status != domain.CodeActive {
		decision := &domain.AccessDecision{
			Granted: false,
			Reason:  reasonForStatus(latest.Status),
			Message: fmt.Sprintf("mã truy cập ở trạng thái '%s'", latest.Status),
		}
		s.recordDecision(ctx, req, decision)
		return decision, nil
	}

	// Mã còn active nhưng đã quá hạn: sweep chưa kịp chạy. Vô hiệu hóa
	// ngay tại đây thay vì cấp quyền.
	if !latest.ExpiresAt.After(now) {
		if _, err := s.codeRepo.InvalidateIfActive(ctx, req.Code, domain.CodeExpired, now); err != nil && !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("lỗi vô hiệu hóa mã quá hạn: %w", err)
		}
		decision := &domain.AccessDecision{
			Granted: false,
			Reason:  domain.ReasonCodeExpired,
			Message: "mã truy cập đã hết hạn",
		}
		s.recordDecision(ctx, req, decision)
		return decision, nil
	}

	used, err := s.codeRepo.MarkUsedIfActive(ctx, req.Code, now)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Thua cuộc đua với một lần validate khác trên cùng mã.
			decision := &domain.AccessDecision{
				Granted: false,
				Reason:  domain.ReasonCodeAlreadyUsed,
				Message: "mã truy cập vừa được sử dụng",
			}
			s.recordDecision(ctx, req, decision)
			return decision, nil
		}
		return nil, fmt.Errorf("lỗi tiêu thụ mã truy cập: %w", err)
	}

	remaining := int(used.ExpiresAt.Sub(now).Minutes())
	decision := &domain.AccessDecision{
		Granted:          true,
		Reason:           domain.ReasonValidReservation,
		Message:          fmt.Sprintf("mã hợp lệ, mời vào chỗ '%s'", used.SpotID),
		SpotID:           used.SpotID,
		ReservationID:    used.ReservationID,
		UserEmail:        used.UserEmail,
		RemainingMinutes: remaining,
	}
	s.audit.Record(ctx, AuditEntry{
		EventType: domain.AuditCodeUsed,
		Decision:  domain.AuditAllow,
		Reason:    string(decision.Reason),
		SpotID:    used.SpotID,
		UserEmail: used.UserEmail,
		Code:      used.Code,
		BarrierID: req.BarrierID,
	})
	s.notifier.Publish(domain.Event{
		Type:      domain.EventAccessDecision,
		Payload:   decision,
		Timestamp: now,
	})
	return decision, nil
}

func reasonForStatus(status domain.AccessCodeStatus) domain.AccessReason {
	switch status {
	case domain.CodeUsed:
		return domain.ReasonCodeAlreadyUsed
	case domain.CodeExpired:
		return domain.ReasonCodeExpired
	case domain.CodeCancelled:
		return domain.ReasonCodeCancelled
	default:
		return domain.ReasonInvalidCode
	}
}

func (s *AccessCodeService) recordDecision(ctx context.Context, req domain.ValidateCodeRequest, d *domain.AccessDecision) {
	decision := domain.AuditDeny
	if d.Granted {
		decision = domain.AuditAllow
	}
	s.audit.Record(ctx, AuditEntry{
		EventType: domain.AuditEntryCheck,
		Decision:  decision,
		Reason:    string(d.Reason),
		SpotID:    d.SpotID,
		UserEmail: d.UserEmail,
		Code:      req.Code,
		BarrierID: req.BarrierID,
	})
	// AccessDecision không chứa giá trị mã, đẩy thẳng lên feed được.
	s.notifier.Publish(domain.Event{
		Type:      domain.EventAccessDecision,
		Payload:   d,
		Timestamp: s.nowFn().UTC(),
	})
}

// Invalidate chuyển mã active của một đặt chỗ sang expired/cancelled.
// Mã đã kết thúc vòng đời thì bỏ qua, không phải lỗi.
func (s *AccessCodeService) Invalidate(ctx context.Context, reservationID string, to domain.AccessCodeStatus) error {
	code, err := s.codeRepo.FindActiveByReservationID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	now := s.nowFn().UTC()
	if _, err := s.codeRepo.InvalidateIfActive(ctx, code.Code, to, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil
		}
		return err
	}
	s.audit.Record(ctx, AuditEntry{
		EventType: domain.AuditCodeInvalidated,
		Decision:  domain.AuditInfo,
		Reason:    string(to),
		SpotID:    code.SpotID,
		UserEmail: code.UserEmail,
		Code:      code.Code,
		Detail:    "reservation_id=" + reservationID,
	})
	s.publishCodeEvent(domain.EventCodeInvalidated, code, to)
	return nil
}

// ExtendExpiry dời hạn mã active theo gia hạn đặt chỗ.
func (s *AccessCodeService) ExtendExpiry(ctx context.Context, reservationID string, newExpiry time.Time) error {
	_, err := s.codeRepo.UpdateExpiry(ctx, reservationID, newExpiry)
	if errors.Is(err, repository.ErrNotFound) {
		// Mã đã dùng hoặc đã hết hạn trước đó: không còn gì để dời.
		return nil
	}
	return err
}

// ExpireDue quét các mã active đã quá hạn và chuyển sang expired.
// Conflict nghĩa là một luồng khác đã xử lý, bỏ qua.
func (s *AccessCodeService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.codeRepo.FindExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, c := range expired {
		if _, err := s.codeRepo.InvalidateIfActive(ctx, c.Code, domain.CodeExpired, now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				continue
			}
			log.Printf("Lỗi vô hiệu hóa mã quá hạn %s: %v", MaskCode(c.Code), err)
			continue
		}
		count++
		s.audit.Record(ctx, AuditEntry{
			EventType: domain.AuditCodeInvalidated,
			Decision:  domain.AuditInfo,
			Reason:    string(domain.CodeExpired),
			SpotID:    c.SpotID,
			UserEmail: c.UserEmail,
			Code:      c.Code,
			Detail:    "reservation_id=" + c.ReservationID,
		})
		s.publishCodeEvent(domain.EventCodeInvalidated, &c, domain.CodeExpired)
	}
	return count, nil
}
