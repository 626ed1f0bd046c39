package domain

import (
	"gopkg.in/guregu/null.v4"
)

type BarrierStatus string

const (
	BarrierOpen   BarrierStatus = "open"
	BarrierClosed BarrierStatus = "closed"
	BarrierError  BarrierStatus = "error" // Trạng thái lỗi phần cứng
)

// Định danh rào chắn cố định cho bãi một cổng vào, một cổng ra.
const (
	BarrierEntry = "entry"
	BarrierExit  = "exit"
)

// BarrierState là trạng thái tức thời của một rào chắn. Không cần bền vững
// qua restart; lịch sử hành động nằm trong audit log.
type BarrierState struct {
	BarrierID      string        `json:"barrier_id"`
	Status         BarrierStatus `json:"status"`
	LastAction     string        `json:"last_action,omitempty"` // "open" hoặc "close"
	LastActionTime null.Time     `json:"last_action_time"`
}

// BarrierDecision là kết quả của một lần kiểm tra tại rào chắn.
// OpenBarrier tách khỏi Granted để caller quyết định có kích hoạt phần cứng hay không.
type BarrierDecision struct {
	Granted             bool         `json:"access_granted"`
	Reason              AccessReason `json:"reason"`
	Message             string       `json:"message"`
	OpenBarrier         bool         `json:"open_barrier"`
	BarrierID           string       `json:"barrier_id"`
	SpotID              string       `json:"spot_id,omitempty"`
	ReservationID       string       `json:"reservation_id,omitempty"`
	RemainingMinutes    int          `json:"remaining_time_minutes,omitempty"`
	OpenDurationSeconds int          `json:"open_duration_seconds,omitempty"`
	VehiclePresence     bool         `json:"vehicle_presence"`
	CodeValid           null.Bool    `json:"code_valid"`
}

type BarrierStatusResponse struct {
	BarrierID         string        `json:"barrier_id"`
	Status            BarrierStatus `json:"status"`
	LastAction        string        `json:"last_action,omitempty"`
	LastActionTime    null.Time     `json:"last_action_time"`
	ParkingFreeSpots  int           `json:"parking_available_spots"`
	ParkingTotalSpots int           `json:"parking_total_spots"`
	AutoOpenAllowed   bool          `json:"auto_open_allowed"`
}

type EntryCheckRequest struct {
	SensorPresence bool   `json:"sensor_presence"`
	AccessCode     string `json:"access_code,omitempty"`
	BarrierID      string `json:"barrier_id,omitempty"`
	SensorID       string `json:"sensor_id,omitempty"`
}

type ExitRequest struct {
	SensorPresence bool   `json:"sensor_presence"`
	SensorID       string `json:"sensor_id,omitempty"`
}

type BarrierOpenRequest struct {
	BarrierID string `json:"barrier_id" binding:"required,oneof=entry exit"`
	Reason    string `json:"reason,omitempty"`
}
