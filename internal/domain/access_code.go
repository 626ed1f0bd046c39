package domain

import (
	"gopkg.in/guregu/null.v4"
	"time"
)

type AccessCodeStatus string

const (
	CodeActive    AccessCodeStatus = "active"
	CodeUsed      AccessCodeStatus = "used"
	CodeExpired   AccessCodeStatus = "expired"
	CodeCancelled AccessCodeStatus = "cancelled"
)

// AccessCode là mã 3 ký tự (A-Z, 0-9) gắn 1:1 với một đặt chỗ.
// Giá trị mã chỉ cần duy nhất trong số các mã đang active; mã đã dùng/hết hạn
// có thể được cấp lại sau này.
type AccessCode struct {
	ID            int              `json:"id"`
	Code          string           `json:"code"`
	ReservationID string           `json:"reservation_id"`
	SpotID        string           `json:"spot_id"`
	UserID        string           `json:"user_id"`
	UserEmail     string           `json:"user_email"`
	Status        AccessCodeStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	ExpiresAt     time.Time        `json:"expires_at"`
	UsedAt        null.Time        `json:"used_at,omitempty"`
	InvalidatedAt null.Time        `json:"invalidated_at,omitempty"`
}

// AccessReason là lý do được trả về cho mọi quyết định cấp/từ chối truy cập.
// Các giá trị này xuất hiện nguyên văn trong audit log và phản hồi API.
type AccessReason string

const (
	ReasonAutoFreeSpots    AccessReason = "auto_free_spots"
	ReasonValidReservation AccessReason = "valid_reservation"
	ReasonVehicleExit      AccessReason = "vehicle_exit"
	ReasonNoVehicle        AccessReason = "no_vehicle"
	ReasonCodeRequired     AccessReason = "code_required"
	ReasonInvalidCode      AccessReason = "invalid_code"
	ReasonCodeExpired      AccessReason = "code_expired"
	ReasonCodeAlreadyUsed  AccessReason = "code_already_used"
	ReasonCodeCancelled    AccessReason = "code_cancelled"
	ReasonParkingFull      AccessReason = "parking_full"
)

// AccessDecision là kết quả của một lần validate mã. Từ chối không phải lỗi:
// handler luôn trả 200 kèm granted=false và lý do cụ thể.
type AccessDecision struct {
	Granted          bool         `json:"access_granted"`
	Reason           AccessReason `json:"reason"`
	Message          string       `json:"message"`
	SpotID           string       `json:"spot_id,omitempty"`
	ReservationID    string       `json:"reservation_id,omitempty"`
	UserEmail        string       `json:"user_email,omitempty"`
	RemainingMinutes int          `json:"remaining_time_minutes,omitempty"`
}

// AccessCodeEvent là payload đẩy qua feed khi một mã đổi trạng thái.
// Giá trị mã luôn ở dạng che (A**): feed không bao giờ mang mã đầy đủ.
type AccessCodeEvent struct {
	Code          string           `json:"code"`
	ReservationID string           `json:"reservation_id"`
	SpotID        string           `json:"spot_id"`
	Status        AccessCodeStatus `json:"status"`
}

type ValidateCodeRequest struct {
	Code           string `json:"code" binding:"required,min=3,max=3"`
	SensorPresence bool   `json:"sensor_presence"`
	BarrierID      string `json:"barrier_id,omitempty"`
}

type InvalidateCodeRequest struct {
	Reason string `json:"reason" binding:"omitempty,oneof=expired cancelled"`
}
