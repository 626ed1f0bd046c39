package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"gopkg.in/guregu/null.v4"
)

// ParkingService quản lý danh bạ chỗ đỗ: seed, trạng thái tổng hợp và
// các chuyển tiếp do cảm biến phát sinh. Mọi ghi đều đi qua
// ConditionalTransition của SpotRepository.
type ParkingService struct {
	spotRepo    repository.SpotRepository
	resRepo     repository.ReservationRepository
	codeService *AccessCodeService
	notifier    domain.Notifier
}

func NewParkingService(
	spotRepo repository.SpotRepository,
	resRepo repository.ReservationRepository,
	codeService *AccessCodeService,
	notifier domain.Notifier,
) *ParkingService {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &ParkingService{
		spotRepo:    spotRepo,
		resRepo:     resRepo,
		codeService: codeService,
		notifier:    notifier,
	}
}

// SeedSpots tạo các chỗ a1..aN nếu chưa tồn tại. Idempotent: chạy lại khi
// restart không đụng vào chỗ đã có trạng thái.
func (s *ParkingService) SeedSpots(ctx context.Context, total int) error {
	for i := 1; i <= total; i++ {
		spotID := fmt.Sprintf("a%d", i)
		_, err := s.spotRepo.Create(ctx, &domain.ParkingSpot{
			SpotID:                 spotID,
			Status:                 domain.SpotFree,
			LastStatusUpdateSource: "seed",
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				continue
			}
			return fmt.Errorf("lỗi seed chỗ đỗ '%s': %w", spotID, err)
		}
	}
	log.Printf("Đã seed danh bạ chỗ đỗ: %d chỗ", total)
	return nil
}

func (s *ParkingService) GetSpot(ctx context.Context, spotID string) (*domain.ParkingSpot, error) {
	return s.spotRepo.FindByID(ctx, spotID)
}

func (s *ParkingService) GetStatus(ctx context.Context, includeSpots bool) (*domain.ParkingStatus, error) {
	counts, err := s.spotRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	status := &domain.ParkingStatus{
		TotalSpots: counts.Total,
		Free:       counts.Free,
		Reserved:   counts.Reserved,
		Occupied:   counts.Occupied,
		Timestamp:  time.Now().UTC(),
	}
	if includeSpots {
		spots, err := s.spotRepo.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		status.Spots = spots
	}
	return status, nil
}

func (s *ParkingService) GetCounts(ctx context.Context) (domain.OccupancyCounts, error) {
	return s.spotRepo.CountByStatus(ctx)
}

// CreateSpot thêm một chỗ đỗ mới (admin).
func (s *ParkingService) CreateSpot(ctx context.Context, dto domain.ParkingSpotDTO) (*domain.ParkingSpot, error) {
	return s.spotRepo.Create(ctx, &domain.ParkingSpot{
		SpotID:                 dto.SpotID,
		Status:                 domain.SpotFree,
		LastStatusUpdateSource: "admin_creation",
	})
}

// DeleteSpot xóa một chỗ đỗ (admin). Từ chối nếu chỗ đang có đặt chỗ hoặc xe.
func (s *ParkingService) DeleteSpot(ctx context.Context, spotID string) error {
	spot, err := s.spotRepo.FindByID(ctx, spotID)
	if err != nil {
		return err
	}
	if spot.Status != domain.SpotFree {
		return fmt.Errorf("không thể xóa chỗ '%s' khi đang ở trạng thái '%s'", spotID, spot.Status)
	}
	return s.spotRepo.Delete(ctx, spotID)
}

// closeDepartedReservation đóng đặt chỗ còn active của một chỗ vừa được xe
// rời khỏi. Chỗ không có đặt chỗ (walk-in) thì không có gì để đóng;
// Conflict nghĩa là release/sweep đã đóng trước, bỏ qua.
func (s *ParkingService) closeDepartedReservation(ctx context.Context, freed *domain.ParkingSpot) {
	reservation, err := s.resRepo.FindActiveBySpotID(ctx, freed.SpotID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("Lỗi tra cứu đặt chỗ của chỗ '%s' khi xe rời: %v", freed.SpotID, err)
		}
		return
	}
	now := time.Now().UTC()
	if _, err := s.resRepo.CloseIfActive(ctx, reservation.ID, domain.ReservationCompleted, now, "vehicle_departed"); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			log.Printf("Lỗi đóng đặt chỗ %s khi xe rời: %v", reservation.ID, err)
		}
		return
	}
	if err := s.codeService.Invalidate(ctx, reservation.ID, domain.CodeCancelled); err != nil {
		log.Printf("Lỗi hủy mã truy cập của đặt chỗ %s khi xe rời: %v", reservation.ID, err)
	}
	s.notifier.Publish(domain.Event{
		Type:      domain.EventReservationEnded,
		Payload:   freed,
		Timestamp: now,
	})
	log.Printf("Xe rời chỗ '%s': đặt chỗ %s kết thúc", freed.SpotID, reservation.ID)
}

// HandleSensorUpdate xử lý báo cáo hiện diện từ cảm biến chỗ đỗ.
//
// Có xe:
//   - free     -> occupied (walk-in, không gắn holder)
//   - reserved -> occupied (giữ nguyên holder: xe của người đặt đã đỗ vào)
//   - occupied -> chỉ cập nhật force_signal
//
// Hết xe:
//   - occupied -> free (xóa holder, đóng đặt chỗ còn active nếu có)
//   - reserved -> giữ nguyên: chỗ đang giữ cho người đặt, cảm biến trống
//     là trạng thái bình thường
func (s *ParkingService) HandleSensorUpdate(ctx context.Context, req domain.SensorUpdateRequest) (*domain.SensorUpdateResponse, error) {
	spot, err := s.spotRepo.FindByID(ctx, req.SpotID)
	if err != nil {
		return nil, err
	}

	var forceSignal null.Int
	if req.ForceSignal != nil {
		forceSignal = null.IntFrom(int64(*req.ForceSignal))
	}

	occupied := req.Occupied != nil && *req.Occupied
	oldStatus := spot.Status
	resp := &domain.SensorUpdateResponse{
		Success:   true,
		SpotID:    spot.SpotID,
		OldStatus: oldStatus,
		NewStatus: oldStatus,
	}

	var updated *domain.ParkingSpot
	switch {
	case occupied && oldStatus == domain.SpotFree:
		// Walk-in: xe đỗ vào chỗ trống không qua đặt chỗ.
		updated, err = s.spotRepo.ConditionalTransition(ctx, spot.SpotID, domain.SpotFree, domain.SpotMutation{
			Status:      domain.SpotOccupied,
			ForceSignal: forceSignal,
			Source:      "sensor",
		})
		if err == nil {
			log.Printf("Cảm biến: xe walk-in tại chỗ '%s' (không có đặt chỗ)", spot.SpotID)
		}
	case occupied && oldStatus == domain.SpotReserved:
		updated, err = s.spotRepo.ConditionalTransition(ctx, spot.SpotID, domain.SpotReserved, domain.SpotMutation{
			Status:           domain.SpotOccupied,
			ReservedBy:       spot.ReservedBy,
			ReservedByEmail:  spot.ReservedByEmail,
			ReservationStart: spot.ReservationStart,
			ReservationEnd:   spot.ReservationEnd,
			DurationMinutes:  spot.DurationMinutes,
			ForceSignal:      forceSignal,
			Source:           "sensor",
		})
		if err == nil {
			log.Printf("Cảm biến: xe của người đặt đã đỗ vào chỗ '%s'", spot.SpotID)
		}
	case !occupied && oldStatus == domain.SpotOccupied:
		updated, err = s.spotRepo.ConditionalTransition(ctx, spot.SpotID, domain.SpotOccupied, domain.SpotMutation{
			Status:      domain.SpotFree,
			ForceSignal: forceSignal,
			Source:      "sensor",
		})
		if err == nil {
			log.Printf("Cảm biến: chỗ '%s' đã trống", spot.SpotID)
			s.closeDepartedReservation(ctx, updated)
		}
	default:
		// Không có chuyển tiếp: reserved + hết xe, hoặc trạng thái đã khớp.
		resp.Message = "không có thay đổi trạng thái"
		return resp, nil
	}

	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Một chuyển tiếp khác thắng giữa lúc đọc và ghi. Báo cáo cảm
			// biến tiếp theo sẽ hội tụ, không cần retry.
			resp.Message = "trạng thái đã thay đổi bởi thao tác khác, bỏ qua"
			return resp, nil
		}
		return nil, fmt.Errorf("lỗi cập nhật từ cảm biến cho chỗ '%s': %w", spot.SpotID, err)
	}

	resp.NewStatus = updated.Status
	s.notifier.Publish(domain.Event{
		Type:      domain.EventSpotUpdated,
		Payload:   updated,
		Timestamp: time.Now().UTC(),
	})
	return resp, nil
}
