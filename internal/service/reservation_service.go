package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"github.com/google/uuid"
	"gopkg.in/guregu/null.v4"
)

var ErrSpotNotAvailable = errors.New("chỗ đỗ không còn trống")
var ErrUserHasActiveReservation = errors.New("người dùng đã có một đặt chỗ đang hoạt động")
var ErrNotReservationOwner = errors.New("đặt chỗ không thuộc về người dùng này")
var ErrInvalidDuration = errors.New("thời lượng đặt chỗ ngoài khoảng cho phép")

// ReservationService điều phối vòng đời đặt chỗ: thanh toán, giữ chỗ
// nguyên tử, sinh mã truy cập, giải phóng và gia hạn.
type ReservationService struct {
	spotRepo    repository.SpotRepository
	resRepo     repository.ReservationRepository
	codeService *AccessCodeService
	payments    PaymentApprover
	audit       *AuditService
	notifier    domain.Notifier

	minMinutes     int
	maxMinutes     int
	defaultMinutes int
	nowFn          func() time.Time

	// Khóa theo người dùng cho Reserve, xem lockUser.
	userLocks sync.Map
}

func (s *ReservationService) lockUser(userID string) func() {
	v, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func NewReservationService(
	spotRepo repository.SpotRepository,
	resRepo repository.ReservationRepository,
	codeService *AccessCodeService,
	payments PaymentApprover,
	audit *AuditService,
	notifier domain.Notifier,
	minMinutes, maxMinutes, defaultMinutes int,
) *ReservationService {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &ReservationService{
		spotRepo:       spotRepo,
		resRepo:        resRepo,
		codeService:    codeService,
		payments:       payments,
		audit:          audit,
		notifier:       notifier,
		minMinutes:     minMinutes,
		maxMinutes:     maxMinutes,
		defaultMinutes: defaultMinutes,
		nowFn:          time.Now,
	}
}

// Reserve giữ một chỗ trống cho người dùng. Thứ tự: kiểm tra thời lượng,
// kiểm tra một-đặt-chỗ-mỗi-người, thanh toán, rồi mới chuyển free->reserved.
// Thanh toán bị từ chối thì chỗ không bị đụng tới.
func (s *ReservationService) Reserve(ctx context.Context, userID, userEmail string, req domain.ReservationRequest) (*domain.ReservationResponse, error) {
	if req.DurationMinutes == 0 {
		req.DurationMinutes = s.defaultMinutes
	}
	if req.DurationMinutes < s.minMinutes || req.DurationMinutes > s.maxMinutes {
		return nil, fmt.Errorf("thời lượng đặt chỗ phải từ %d đến %d phút, nhận được %d: %w",
			s.minMinutes, s.maxMinutes, req.DurationMinutes, ErrInvalidDuration)
	}

	// Tuần tự hóa các lần Reserve của cùng một người dùng: kiểm tra
	// một-đặt-chỗ-mỗi-người và bước giữ chỗ phải là một khối đối với
	// chính người đó, nếu không hai request song song trên hai chỗ khác
	// nhau đều qua được bước kiểm tra.
	unlock := s.lockUser(userID)
	defer unlock()

	if _, err := s.resRepo.FindActiveByUserID(ctx, userID); err == nil {
		return nil, ErrUserHasActiveReservation
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lỗi kiểm tra đặt chỗ hiện có: %w", err)
	}

	payment, err := s.payments.Charge(ctx, PaymentRequest{
		UserID:          userID,
		UserEmail:       userEmail,
		SpotID:          req.SpotID,
		DurationMinutes: req.DurationMinutes,
		SimulateFailure: req.SimulateFailure,
	})
	if err != nil {
		return nil, fmt.Errorf("lỗi xử lý thanh toán: %w", err)
	}
	if payment.Status != domain.PaymentApproved {
		return &domain.ReservationResponse{
			Success:   false,
			Message:   "thanh toán bị từ chối, chỗ đỗ không bị giữ",
			PaymentID: payment.PaymentID,
			Amount:    payment.Amount,
		}, nil
	}

	now := s.nowFn().UTC()
	endTime := now.Add(time.Duration(req.DurationMinutes) * time.Minute)
	reservationID := "RES-" + strings.ToUpper(uuid.NewString()[:8])

	spot, err := s.spotRepo.ConditionalTransition(ctx, req.SpotID, domain.SpotFree, domain.SpotMutation{
		Status:           domain.SpotReserved,
		ReservedBy:       null.StringFrom(userID),
		ReservedByEmail:  null.StringFrom(userEmail),
		ReservationStart: null.TimeFrom(now),
		ReservationEnd:   null.TimeFrom(endTime),
		DurationMinutes:  null.IntFrom(int64(req.DurationMinutes)),
		Source:           "reservation",
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrSpotNotAvailable
		}
		return nil, fmt.Errorf("lỗi giữ chỗ '%s': %w", req.SpotID, err)
	}

	reservation, err := s.resRepo.Create(ctx, &domain.Reservation{
		ID:              reservationID,
		SpotID:          req.SpotID,
		UserID:          userID,
		UserEmail:       userEmail,
		StartTime:       now,
		EndTime:         endTime,
		DurationMinutes: req.DurationMinutes,
		Status:          domain.ReservationActive,
	})
	if err != nil {
		// Không lưu được bản ghi đặt chỗ: trả chỗ về free trước khi báo lỗi.
		s.rollbackHold(ctx, req.SpotID)
		return nil, fmt.Errorf("lỗi lưu đặt chỗ: %w", err)
	}

	code, err := s.codeService.Generate(ctx, reservation)
	if err != nil {
		s.rollbackHold(ctx, req.SpotID)
		if _, closeErr := s.resRepo.CloseIfActive(ctx, reservationID, domain.ReservationCancelled, s.nowFn().UTC(), "code_generation_failed"); closeErr != nil {
			log.Printf("Lỗi hủy đặt chỗ %s sau khi sinh mã thất bại: %v", reservationID, closeErr)
		}
		return nil, fmt.Errorf("lỗi sinh mã truy cập: %w", err)
	}
	reservation.AccessCode = null.StringFrom(code.Code)

	s.audit.Record(ctx, AuditEntry{
		EventType: domain.AuditReservation,
		Decision:  domain.AuditAllow,
		SpotID:    req.SpotID,
		UserEmail: userEmail,
		Code:      code.Code,
		Detail:    fmt.Sprintf("reservation_id=%s duration=%d payment_id=%s", reservationID, req.DurationMinutes, payment.PaymentID),
	})
	s.notifier.Publish(domain.Event{
		Type:      domain.EventReservationCreated,
		Payload:   spot,
		Timestamp: now,
	})
	log.Printf("Đã đặt chỗ '%s' cho %s đến %s (đặt chỗ %s)", req.SpotID, userEmail, endTime.Format(time.RFC3339), reservationID)

	return &domain.ReservationResponse{
		Success:       true,
		Message:       fmt.Sprintf("đã giữ chỗ '%s' trong %d phút", req.SpotID, req.DurationMinutes),
		ReservationID: reservationID,
		AccessCode:    code.Code,
		Spot:          spot,
		ExpiresAt:     &endTime,
		PaymentID:     payment.PaymentID,
		Amount:        payment.Amount,
	}, nil
}

func (s *ReservationService) rollbackHold(ctx context.Context, spotID string) {
	if _, err := s.spotRepo.ConditionalTransition(ctx, spotID, domain.SpotReserved, domain.SpotMutation{
		Status: domain.SpotFree,
		Source: "reservation_rollback",
	}); err != nil && !errors.Is(err, repository.ErrConflict) {
		log.Printf("Lỗi trả chỗ '%s' về trống khi rollback: %v", spotID, err)
	}
}

// Release kết thúc một đặt chỗ theo yêu cầu của người giữ chỗ hoặc admin.
// Chỗ đang reserved hay occupied đều được trả về free; mã truy cập còn
// active bị hủy.
func (s *ReservationService) Release(ctx context.Context, reservationID, userID string, isAdmin bool, reason string) (*domain.ParkingSpot, error) {
	reservation, err := s.resRepo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && reservation.UserID != userID {
		return nil, ErrNotReservationOwner
	}
	if reason == "" {
		reason = "user_release"
		if isAdmin {
			reason = "admin_release"
		}
	}

	now := s.nowFn().UTC()
	closed, err := s.resRepo.CloseIfActive(ctx, reservationID, domain.ReservationCompleted, now, reason)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("đặt chỗ %s đã kết thúc trước đó", reservationID)
		}
		return nil, err
	}

	spot := s.freeSpot(ctx, closed.SpotID, "release")
	if err := s.codeService.Invalidate(ctx, reservationID, domain.CodeCancelled); err != nil {
		log.Printf("Lỗi hủy mã truy cập của đặt chỗ %s: %v", reservationID, err)
	}

	s.audit.Record(ctx, AuditEntry{
		EventType: domain.AuditRelease,
		Decision:  domain.AuditInfo,
		Reason:    reason,
		SpotID:    closed.SpotID,
		UserEmail: closed.UserEmail,
		Detail:    "reservation_id=" + reservationID,
	})
	s.notifier.Publish(domain.Event{
		Type:      domain.EventReservationEnded,
		Payload:   spot,
		Timestamp: now,
	})
	log.Printf("Đã giải phóng chỗ '%s' (đặt chỗ %s, lý do: %s)", closed.SpotID, reservationID, reason)
	return spot, nil
}

// freeSpot trả chỗ về free bất kể đang reserved hay occupied.
func (s *ReservationService) freeSpot(ctx context.Context, spotID, source string) *domain.ParkingSpot {
	mut := domain.SpotMutation{Status: domain.SpotFree, Source: source}
	for _, from := range []domain.SpotStatus{domain.SpotReserved, domain.SpotOccupied} {
		spot, err := s.spotRepo.ConditionalTransition(ctx, spotID, from, mut)
		if err == nil {
			return spot
		}
		if !errors.Is(err, repository.ErrConflict) {
			log.Printf("Lỗi trả chỗ '%s' về trống: %v", spotID, err)
			return nil
		}
	}
	// Chỗ đã free sẵn (ví dụ sweep chạy trước).
	spot, err := s.spotRepo.FindByID(ctx, spotID)
	if err != nil {
		log.Printf("Lỗi đọc lại chỗ '%s': %v", spotID, err)
		return nil
	}
	return spot
}

// Extend gia hạn một đặt chỗ đang hoạt động. Tổng thời lượng sau gia hạn
// không được vượt trần; hạn mã truy cập được dời theo cùng một mốc.
func (s *ReservationService) Extend(ctx context.Context, reservationID, userID string, additionalMinutes int) (*domain.Reservation, error) {
	if additionalMinutes <= 0 {
		return nil, fmt.Errorf("số phút gia hạn phải lớn hơn 0")
	}
	reservation, err := s.resRepo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.UserID != userID {
		return nil, ErrNotReservationOwner
	}
	newDuration := reservation.DurationMinutes + additionalMinutes
	if newDuration > s.maxMinutes {
		return nil, fmt.Errorf("tổng thời lượng sau gia hạn (%d phút) vượt trần %d phút", newDuration, s.maxMinutes)
	}

	newEnd := reservation.EndTime.Add(time.Duration(additionalMinutes) * time.Minute)
	extended, err := s.resRepo.ExtendIfActive(ctx, reservationID, newEnd, newDuration)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("đặt chỗ %s đã kết thúc, không thể gia hạn", reservationID)
		}
		return nil, err
	}

	// Cập nhật cửa sổ trên bản ghi chỗ đỗ, giữ nguyên trạng thái hiện tại.
	spot, err := s.spotRepo.FindByID(ctx, extended.SpotID)
	if err == nil && spot.Status != domain.SpotFree {
		if _, err := s.spotRepo.ConditionalTransition(ctx, spot.SpotID, spot.Status, domain.SpotMutation{
			Status:           spot.Status,
			ReservedBy:       spot.ReservedBy,
			ReservedByEmail:  spot.ReservedByEmail,
			ReservationStart: spot.ReservationStart,
			ReservationEnd:   null.TimeFrom(newEnd),
			DurationMinutes:  null.IntFrom(int64(newDuration)),
			Source:           "extend",
		}); err != nil && !errors.Is(err, repository.ErrConflict) {
			log.Printf("Lỗi cập nhật cửa sổ trên chỗ '%s' khi gia hạn: %v", spot.SpotID, err)
		}
	}

	if err := s.codeService.ExtendExpiry(ctx, reservationID, newEnd); err != nil {
		log.Printf("Lỗi dời hạn mã truy cập của đặt chỗ %s: %v", reservationID, err)
	}

	s.audit.Record(ctx, AuditEntry{
		EventType: domain.AuditExtend,
		Decision:  domain.AuditInfo,
		SpotID:    extended.SpotID,
		UserEmail: extended.UserEmail,
		Detail:    fmt.Sprintf("reservation_id=%s additional=%d new_end=%s", reservationID, additionalMinutes, newEnd.Format(time.RFC3339)),
	})
	s.notifier.Publish(domain.Event{
		Type:      domain.EventReservationExtended,
		Payload:   extended,
		Timestamp: s.nowFn().UTC(),
	})
	log.Printf("Đã gia hạn đặt chỗ %s thêm %d phút, hạn mới %s", reservationID, additionalMinutes, newEnd.Format(time.RFC3339))
	return extended, nil
}

func (s *ReservationService) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	return s.resRepo.FindByID(ctx, id)
}

func (s *ReservationService) GetUserReservations(ctx context.Context, userID string, limit int) ([]domain.Reservation, error) {
	return s.resRepo.FindByUserID(ctx, userID, limit)
}

func (s *ReservationService) GetActiveReservation(ctx context.Context, userID string) (*domain.Reservation, error) {
	return s.resRepo.FindActiveByUserID(ctx, userID)
}

// ConfirmArrival chuyển chỗ reserved->occupied khi xe của người đặt được
// cấp quyền vào. Giữ nguyên holder và cửa sổ đặt chỗ.
func (s *ReservationService) ConfirmArrival(ctx context.Context, spotID string) error {
	spot, err := s.spotRepo.FindByID(ctx, spotID)
	if err != nil {
		return err
	}
	if spot.Status != domain.SpotReserved {
		// Cảm biến có thể đã chuyển trước, không phải lỗi.
		return nil
	}
	_, err = s.spotRepo.ConditionalTransition(ctx, spotID, domain.SpotReserved, domain.SpotMutation{
		Status:           domain.SpotOccupied,
		ReservedBy:       spot.ReservedBy,
		ReservedByEmail:  spot.ReservedByEmail,
		ReservationStart: spot.ReservationStart,
		ReservationEnd:   spot.ReservationEnd,
		DurationMinutes:  spot.DurationMinutes,
		Source:           "barrier_entry",
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil
	}
	return err
}

// ExpireDue quét các chỗ reserved đã quá hạn: trả chỗ về free, đóng đặt
// chỗ và vô hiệu hóa mã. Conflict ở bất kỳ bước nào nghĩa là một luồng
// khác đã xử lý chỗ đó, bỏ qua.
func (s *ReservationService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.spotRepo.FindExpiredReservations(ctx, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, spot := range expired {
		freed, err := s.spotRepo.ConditionalTransition(ctx, spot.SpotID, domain.SpotReserved, domain.SpotMutation{
			Status: domain.SpotFree,
			Source: "expiry_sweep",
		})
		if err != nil {
			if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
				continue
			}
			log.Printf("Lỗi giải phóng chỗ quá hạn '%s': %v", spot.SpotID, err)
			continue
		}
		count++

		reservation, err := s.resRepo.FindActiveBySpotID(ctx, spot.SpotID)
		if err == nil {
			if _, err := s.resRepo.CloseIfActive(ctx, reservation.ID, domain.ReservationExpired, now, "expired"); err != nil && !errors.Is(err, repository.ErrConflict) {
				log.Printf("Lỗi đóng đặt chỗ quá hạn %s: %v", reservation.ID, err)
			}
			if err := s.codeService.Invalidate(ctx, reservation.ID, domain.CodeExpired); err != nil {
				log.Printf("Lỗi vô hiệu hóa mã của đặt chỗ quá hạn %s: %v", reservation.ID, err)
			}
		} else if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("Lỗi tra cứu đặt chỗ cho chỗ quá hạn '%s': %v", spot.SpotID, err)
		}

		s.audit.Record(ctx, AuditEntry{
			EventType: domain.AuditSweep,
			Decision:  domain.AuditInfo,
			Reason:    "reservation_expired",
			SpotID:    spot.SpotID,
			UserEmail: spot.ReservedByEmail.String,
		})
		s.notifier.Publish(domain.Event{
			Type:      domain.EventReservationEnded,
			Payload:   freed,
			Timestamp: now,
		})
		log.Printf("Sweep: đặt chỗ tại '%s' đã quá hạn, chỗ trở về trống", spot.SpotID)
	}
	return count, nil
}
