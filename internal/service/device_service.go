package service

import (
	"context"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"gopkg.in/guregu/null.v4"
)

// DeviceService quản lý danh bạ thiết bị cảm biến và bộ điều khiển rào.
type DeviceService struct {
	deviceRepo repository.DeviceRepository
}

func NewDeviceService(deviceRepo repository.DeviceRepository) *DeviceService {
	return &DeviceService{deviceRepo: deviceRepo}
}

func (s *DeviceService) Register(ctx context.Context, dto domain.RegisterDeviceDTO) (*domain.Device, error) {
	return s.deviceRepo.CreateOrUpdate(ctx, &domain.Device{
		ThingName:  dto.ThingName,
		DeviceType: dto.DeviceType,
		SpotID:     null.NewString(dto.SpotID, dto.SpotID != ""),
		BarrierID:  null.NewString(dto.BarrierID, dto.BarrierID != ""),
		Status:     domain.DeviceOnline,
		LastSeenAt: null.TimeFrom(time.Now().UTC()),
	})
}

// Heartbeat đánh dấu thiết bị online mỗi khi nhận được báo cáo từ nó.
// Thiết bị chưa đăng ký thì bỏ qua, không phải lỗi.
func (s *DeviceService) Heartbeat(ctx context.Context, thingName string) {
	if thingName == "" {
		return
	}
	_ = s.deviceRepo.UpdateStatus(ctx, thingName, domain.DeviceOnline, time.Now().UTC())
}

func (s *DeviceService) GetAll(ctx context.Context) ([]domain.Device, error) {
	return s.deviceRepo.FindAll(ctx)
}

func (s *DeviceService) GetByThingName(ctx context.Context, thingName string) (*domain.Device, error) {
	return s.deviceRepo.FindByThingName(ctx, thingName)
}
