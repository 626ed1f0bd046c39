package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"gopkg.in/guregu/null.v4"
)

// BarrierCommander gửi lệnh open/close xuống phần cứng rào chắn. Triển khai
// nil nghĩa là chạy không có phần cứng (mô phỏng).
type BarrierCommander interface {
	SendBarrierCommand(ctx context.Context, barrierID, action string) error
}

// BarrierService là bộ quyết định tại rào chắn. Quy tắc vào cổng, theo
// đúng thứ tự ưu tiên:
//
//  1. Còn chỗ trống      -> chỉ cần xe hiện diện là mở (auto_free_spots).
//  2. Hết trống, còn giữ -> cần xe hiện diện VÀ mã truy cập hợp lệ.
//  3. Không còn gì       -> parking_full, kể cả khi mã hợp lệ đi nữa.
//
// Rào ra chỉ cần hiện diện. Trạng thái rào giữ trong bộ nhớ; rào tự đóng
// sau openDuration, lệnh mở lặp lại chỉ reset đồng hồ.
type BarrierService struct {
	spotRepo    repository.SpotRepository
	codeService *AccessCodeService
	resService  *ReservationService
	audit       *AuditService
	notifier    domain.Notifier
	commander   BarrierCommander

	openDuration time.Duration
	nowFn        func() time.Time

	mu          sync.Mutex
	states      map[string]*domain.BarrierState
	closeTimers map[string]*time.Timer
}

func NewBarrierService(
	spotRepo repository.SpotRepository,
	codeService *AccessCodeService,
	resService *ReservationService,
	audit *AuditService,
	notifier domain.Notifier,
	commander BarrierCommander,
	openDuration time.Duration,
) *BarrierService {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &BarrierService{
		spotRepo:     spotRepo,
		codeService:  codeService,
		resService:   resService,
		audit:        audit,
		notifier:     notifier,
		commander:    commander,
		openDuration: openDuration,
		nowFn:        time.Now,
		states: map[string]*domain.BarrierState{
			domain.BarrierEntry: {BarrierID: domain.BarrierEntry, Status: domain.BarrierClosed},
			domain.BarrierExit:  {BarrierID: domain.BarrierExit, Status: domain.BarrierClosed},
		},
		closeTimers: make(map[string]*time.Timer),
	}
}

// CheckEntry đánh giá một xe đứng trước rào vào.
func (s *BarrierService) CheckEntry(ctx context.Context, req domain.EntryCheckRequest) (*domain.BarrierDecision, error) {
	barrierID := req.BarrierID
	if barrierID == "" {
		barrierID = domain.BarrierEntry
	}
	decision := &domain.BarrierDecision{
		BarrierID:       barrierID,
		VehiclePresence: req.SensorPresence,
	}

	if !req.SensorPresence {
		decision.Reason = domain.ReasonNoVehicle
		decision.Message = "không phát hiện xe trước rào chắn"
		s.recordEntryDecision(ctx, req, decision)
		return decision, nil
	}

	counts, err := s.spotRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("lỗi đếm trạng thái chỗ đỗ: %w", err)
	}

	switch {
	case counts.Free > 0:
		decision.Granted = true
		decision.OpenBarrier = true
		decision.Reason = domain.ReasonAutoFreeSpots
		decision.Message = fmt.Sprintf("còn %d chỗ trống, mời vào", counts.Free)
		s.recordEntryDecision(ctx, req, decision)

	case counts.Reserved > 0:
		if req.AccessCode == "" {
			decision.Reason = domain.ReasonCodeRequired
			decision.Message = "hết chỗ trống, chỉ xe có mã đặt chỗ mới được vào"
			s.recordEntryDecision(ctx, req, decision)
			return decision, nil
		}
		// Validate tự ghi audit cho nhánh có mã.
		access, err := s.codeService.Validate(ctx, domain.ValidateCodeRequest{
			Code:           req.AccessCode,
			SensorPresence: req.SensorPresence,
			BarrierID:      barrierID,
		})
		if err != nil {
			return nil, err
		}
		decision.Granted = access.Granted
		decision.Reason = access.Reason
		decision.Message = access.Message
		decision.SpotID = access.SpotID
		decision.ReservationID = access.ReservationID
		decision.RemainingMinutes = access.RemainingMinutes
		decision.CodeValid = null.BoolFrom(access.Granted)
		if access.Granted {
			decision.OpenBarrier = true
			if err := s.resService.ConfirmArrival(ctx, access.SpotID); err != nil {
				log.Printf("Lỗi xác nhận xe vào chỗ '%s': %v", access.SpotID, err)
			}
		}

	default:
		decision.Reason = domain.ReasonParkingFull
		decision.Message = "bãi đỗ đã đầy"
		s.recordEntryDecision(ctx, req, decision)
	}

	if decision.OpenBarrier {
		s.open(ctx, barrierID, string(decision.Reason))
		decision.OpenDurationSeconds = int(s.openDuration.Seconds())
	}
	return decision, nil
}

// ProcessExit cho xe ra: chỉ cần hiện diện trước rào ra.
func (s *BarrierService) ProcessExit(ctx context.Context, req domain.ExitRequest) (*domain.BarrierDecision, error) {
	decision := &domain.BarrierDecision{
		BarrierID:       domain.BarrierExit,
		VehiclePresence: req.SensorPresence,
	}
	if !req.SensorPresence {
		decision.Reason = domain.ReasonNoVehicle
		decision.Message = "không phát hiện xe trước rào ra"
	} else {
		decision.Granted = true
		decision.OpenBarrier = true
		decision.Reason = domain.ReasonVehicleExit
		decision.Message = "mời ra, chúc thượng lộ bình an"
		s.open(ctx, domain.BarrierExit, string(domain.ReasonVehicleExit))
		decision.OpenDurationSeconds = int(s.openDuration.Seconds())
	}

	auditDecision := domain.AuditDeny
	if decision.Granted {
		auditDecision = domain.AuditAllow
	}
	s.audit.Record(ctx, AuditEntry{
		EventType: domain.AuditExitCheck,
		Decision:  auditDecision,
		Reason:    string(decision.Reason),
		BarrierID: domain.BarrierExit,
	})
	return decision, nil
}

func (s *BarrierService) recordEntryDecision(ctx context.Context, req domain.EntryCheckRequest, d *domain.BarrierDecision) {
	auditDecision := domain.AuditDeny
	if d.Granted {
		auditDecision = domain.AuditAllow
	}
	s.audit.Record(ctx, AuditEntry{
		EventType: domain.AuditEntryCheck,
		Decision:  auditDecision,
		Reason:    string(d.Reason),
		SpotID:    d.SpotID,
		Code:      req.AccessCode,
		BarrierID: d.BarrierID,
	})
}

// Open mở rào theo lệnh thủ công (admin).
func (s *BarrierService) Open(ctx context.Context, barrierID, reason string) (*domain.BarrierState, error) {
	state := s.open(ctx, barrierID, reason)
	if state == nil {
		return nil, fmt.Errorf("rào chắn '%s' không tồn tại: %w", barrierID, repository.ErrNotFound)
	}
	s.audit.Record(ctx, AuditEntry{
		EventType: domain.AuditBarrierOpen,
		Decision:  domain.AuditInfo,
		Reason:    reason,
		BarrierID: barrierID,
	})
	return state, nil
}

// open mở rào và đặt (hoặc reset) đồng hồ tự đóng. Idempotent: rào đang
// mở thì chỉ kéo dài thời gian mở.
func (s *BarrierService) open(ctx context.Context, barrierID, reason string) *domain.BarrierState {
	s.mu.Lock()
	state, ok := s.states[barrierID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	now := s.nowFn().UTC()
	state.Status = domain.BarrierOpen
	state.LastAction = "open"
	state.LastActionTime = null.TimeFrom(now)

	if timer, ok := s.closeTimers[barrierID]; ok {
		timer.Stop()
	}
	s.closeTimers[barrierID] = time.AfterFunc(s.openDuration, func() {
		s.autoClose(barrierID)
	})
	out := *state
	s.mu.Unlock()

	if s.commander != nil {
		if err := s.commander.SendBarrierCommand(ctx, barrierID, "open"); err != nil {
			log.Printf("Lỗi gửi lệnh mở rào '%s' xuống thiết bị: %v", barrierID, err)
		}
	}
	s.notifier.Publish(domain.Event{
		Type:      domain.EventBarrierAction,
		Payload:   out,
		Timestamp: now,
	})
	log.Printf("Rào '%s' mở (lý do: %s), tự đóng sau %s", barrierID, reason, s.openDuration)
	return &out
}

func (s *BarrierService) autoClose(barrierID string) {
	ctx := context.Background()
	s.mu.Lock()
	state, ok := s.states[barrierID]
	if !ok || state.Status != domain.BarrierOpen {
		s.mu.Unlock()
		return
	}
	now := s.nowFn().UTC()
	state.Status = domain.BarrierClosed
	state.LastAction = "close"
	state.LastActionTime = null.TimeFrom(now)
	delete(s.closeTimers, barrierID)
	out := *state
	s.mu.Unlock()

	if s.commander != nil {
		if err := s.commander.SendBarrierCommand(ctx, barrierID, "close"); err != nil {
			log.Printf("Lỗi gửi lệnh đóng rào '%s' xuống thiết bị: %v", barrierID, err)
		}
	}
	s.audit.Record(ctx, AuditEntry{
		EventType: domain.AuditBarrierClose,
		Decision:  domain.AuditInfo,
		Reason:    "auto_close",
		BarrierID: barrierID,
	})
	s.notifier.Publish(domain.Event{
		Type:      domain.EventBarrierAction,
		Payload:   out,
		Timestamp: now,
	})
	log.Printf("Rào '%s' tự đóng", barrierID)
}

// Close đóng rào ngay lập tức (admin), hủy đồng hồ tự đóng nếu có.
func (s *BarrierService) Close(ctx context.Context, barrierID, reason string) (*domain.BarrierState, error) {
	s.mu.Lock()
	state, ok := s.states[barrierID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("rào chắn '%s' không tồn tại: %w", barrierID, repository.ErrNotFound)
	}
	now := s.nowFn().UTC()
	state.Status = domain.BarrierClosed
	state.LastAction = "close"
	state.LastActionTime = null.TimeFrom(now)
	if timer, ok := s.closeTimers[barrierID]; ok {
		timer.Stop()
		delete(s.closeTimers, barrierID)
	}
	out := *state
	s.mu.Unlock()

	if s.commander != nil {
		if err := s.commander.SendBarrierCommand(ctx, barrierID, "close"); err != nil {
			log.Printf("Lỗi gửi lệnh đóng rào '%s' xuống thiết bị: %v", barrierID, err)
		}
	}
	s.audit.Record(ctx, AuditEntry{
		EventType: domain.AuditBarrierClose,
		Decision:  domain.AuditInfo,
		Reason:    reason,
		BarrierID: barrierID,
	})
	s.notifier.Publish(domain.Event{
		Type:      domain.EventBarrierAction,
		Payload:   out,
		Timestamp: now,
	})
	return &out, nil
}

// Status trả về trạng thái rào kèm snapshot sức chứa của bãi.
func (s *BarrierService) Status(ctx context.Context, barrierID string) (*domain.BarrierStatusResponse, error) {
	s.mu.Lock()
	state, ok := s.states[barrierID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("rào chắn '%s' không tồn tại: %w", barrierID, repository.ErrNotFound)
	}
	snapshot := *state
	s.mu.Unlock()

	counts, err := s.spotRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("lỗi đếm trạng thái chỗ đỗ: %w", err)
	}
	return &domain.BarrierStatusResponse{
		BarrierID:         snapshot.BarrierID,
		Status:            snapshot.Status,
		LastAction:        snapshot.LastAction,
		LastActionTime:    snapshot.LastActionTime,
		ParkingFreeSpots:  counts.Free,
		ParkingTotalSpots: counts.Total,
		AutoOpenAllowed:   counts.Free > 0,
	}, nil
}
