package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
)

var ErrNotFound = errors.New("không tìm thấy bản ghi")
var ErrDuplicateEntry = errors.New("bản ghi đã tồn tại")

// ErrConflict trả về khi một chuyển trạng thái có điều kiện không khớp:
// bản ghi tồn tại nhưng trạng thái hiện tại khác trạng thái mong đợi.
// Caller phân biệt với ErrNotFound để báo lỗi chính xác cho client.
var ErrConflict = errors.New("trạng thái hiện tại không khớp điều kiện chuyển")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// SpotRepository quản lý bản ghi chỗ đỗ. Mọi thay đổi trạng thái đi qua
// ConditionalTransition: ghi đè toàn bộ trường đặt chỗ chỉ khi trạng thái
// hiện tại đúng như mong đợi, trả về ErrConflict nếu không.
type SpotRepository interface {
	Create(ctx context.Context, spot *domain.ParkingSpot) (*domain.ParkingSpot, error)
	FindByID(ctx context.Context, spotID string) (*domain.ParkingSpot, error)
	FindAll(ctx context.Context) ([]domain.ParkingSpot, error)
	CountByStatus(ctx context.Context) (domain.OccupancyCounts, error)
	// ConditionalTransition chuyển spot từ expectFrom sang trạng thái trong
	// mut, nguyên tử. Trả về bản ghi sau khi ghi.
	ConditionalTransition(ctx context.Context, spotID string, expectFrom domain.SpotStatus, mut domain.SpotMutation) (*domain.ParkingSpot, error)
	// FindExpiredReservations trả về các spot RESERVED có reservation_end <= now.
	FindExpiredReservations(ctx context.Context, now time.Time) ([]domain.ParkingSpot, error)
	FindActiveByHolder(ctx context.Context, userID string) (*domain.ParkingSpot, error)
	Delete(ctx context.Context, spotID string) error
}

type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) (*domain.Reservation, error)
	FindByID(ctx context.Context, id string) (*domain.Reservation, error)
	FindActiveBySpotID(ctx context.Context, spotID string) (*domain.Reservation, error)
	FindActiveByUserID(ctx context.Context, userID string) (*domain.Reservation, error)
	FindByUserID(ctx context.Context, userID string, limit int) ([]domain.Reservation, error)
	// CloseIfActive kết thúc reservation nguyên tử: chỉ ghi khi status còn
	// active, trả về ErrConflict nếu đã kết thúc trước đó.
	CloseIfActive(ctx context.Context, id string, status domain.ReservationStatus, endedAt time.Time, reason string) (*domain.Reservation, error)
	// ExtendIfActive cộng thêm thời lượng khi reservation còn active.
	ExtendIfActive(ctx context.Context, id string, newEnd time.Time, newDurationMinutes int) (*domain.Reservation, error)
}

// AccessCodeRepository quản lý vòng đời mã truy cập. Mã chỉ cần duy nhất
// trong tập ACTIVE; MarkUsedIfActive và InvalidateIfActive là one-shot.
type AccessCodeRepository interface {
	Create(ctx context.Context, code *domain.AccessCode) (*domain.AccessCode, error)
	FindActiveByCode(ctx context.Context, code string) (*domain.AccessCode, error)
	// FindLatestByCode trả về bản ghi mới nhất cho mã bất kể trạng thái,
	// dùng để báo lý do từ chối chính xác (expired/used/cancelled).
	FindLatestByCode(ctx context.Context, code string) (*domain.AccessCode, error)
	FindActiveByReservationID(ctx context.Context, reservationID string) (*domain.AccessCode, error)
	// MarkUsedIfActive chuyển ACTIVE -> USED nguyên tử. ErrConflict nếu mã
	// không còn ACTIVE (đã dùng / hết hạn / hủy).
	MarkUsedIfActive(ctx context.Context, code string, usedAt time.Time) (*domain.AccessCode, error)
	InvalidateIfActive(ctx context.Context, code string, to domain.AccessCodeStatus, at time.Time) (*domain.AccessCode, error)
	// UpdateExpiry dời hạn mã ACTIVE theo gia hạn đặt chỗ.
	UpdateExpiry(ctx context.Context, reservationID string, newExpiry time.Time) (*domain.AccessCode, error)
	FindExpired(ctx context.Context, now time.Time) ([]domain.AccessCode, error)
}

type AuditLogRepository interface {
	Append(ctx context.Context, entry *domain.AuditLog) error
	Find(ctx context.Context, q domain.AuditQuery) ([]domain.AuditLog, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) (*domain.Payment, error)
	FindByID(ctx context.Context, paymentID string) (*domain.Payment, error)
	FindByUserID(ctx context.Context, userID string, limit int) ([]domain.Payment, error)
}

type DeviceRepository interface {
	CreateOrUpdate(ctx context.Context, device *domain.Device) (*domain.Device, error)
	FindByThingName(ctx context.Context, thingName string) (*domain.Device, error)
	FindAll(ctx context.Context) ([]domain.Device, error)
	UpdateStatus(ctx context.Context, thingName string, status domain.DeviceStatus, lastSeenAt time.Time) error
}
