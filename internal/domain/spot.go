package domain

import (
	"gopkg.in/guregu/null.v4"
	"time"
)

type SpotStatus string

const (
	SpotFree     SpotStatus = "free"
	SpotReserved SpotStatus = "reserved"
	SpotOccupied SpotStatus = "occupied"
)

// ParkingSpot là bản ghi chính thức của một chỗ đỗ vật lý (ví dụ: "a1").
// Các trường holder/window chỉ khác null khi status là reserved hoặc occupied.
type ParkingSpot struct {
	SpotID                 string      `json:"spot_id"`
	Status                 SpotStatus  `json:"status"`
	ReservedBy             null.String `json:"reserved_by"`
	ReservedByEmail        null.String `json:"reserved_by_email"`
	ReservationStart       null.Time   `json:"reservation_start_time"`
	ReservationEnd         null.Time   `json:"reservation_end_time"`
	DurationMinutes        null.Int    `json:"reservation_duration_minutes"`
	ForceSignal            null.Int    `json:"force_signal"` // RSSI từ cảm biến, chỉ để chẩn đoán
	LastStatusUpdateSource string      `json:"last_status_update_source,omitempty"`
	LastUpdate             time.Time   `json:"last_update"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
}

// SpotMutation mô tả toàn bộ trạng thái đích của một chuyển tiếp có điều kiện.
// Mọi trường holder/window được ghi đè nguyên khối, không merge từng phần.
type SpotMutation struct {
	Status           SpotStatus
	ReservedBy       null.String
	ReservedByEmail  null.String
	ReservationStart null.Time
	ReservationEnd   null.Time
	DurationMinutes  null.Int
	ForceSignal      null.Int
	Source           string
}

type ParkingSpotDTO struct {
	SpotID string `json:"spot_id" binding:"required,min=1,max=10"`
}

type ParkingStatus struct {
	TotalSpots int           `json:"total_spots"`
	Free       int           `json:"free"`
	Reserved   int           `json:"reserved"`
	Occupied   int           `json:"occupied"`
	Spots      []ParkingSpot `json:"spots,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// OccupancyCounts là snapshot số lượng theo trạng thái, dùng cho Double-True Rule.
type OccupancyCounts struct {
	Total    int `json:"total"`
	Free     int `json:"free"`
	Reserved int `json:"reserved"`
	Occupied int `json:"occupied"`
}
