package domain

import (
	"gopkg.in/guregu/null.v4"
	"time"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationExpired   ReservationStatus = "expired"
	ReservationCancelled ReservationStatus = "cancelled"
)

type Reservation struct {
	ID              string            `json:"reservation_id"` // Ví dụ: "RES-1A2B3C4D"
	SpotID          string            `json:"spot_id"`
	UserID          string            `json:"user_id"`
	UserEmail       string            `json:"user_email"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	DurationMinutes int               `json:"duration_minutes"`
	Status          ReservationStatus `json:"status"`
	AccessCode      null.String       `json:"access_code,omitempty"`
	EndedAt         null.Time         `json:"ended_at,omitempty"`
	EndReason       null.String       `json:"end_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type ReservationRequest struct {
	SpotID          string `json:"spot_id" binding:"required"`
	DurationMinutes int    `json:"duration_minutes" binding:"omitempty,gt=0"` // 0 = dùng thời lượng mặc định
	SimulateFailure bool   `json:"simulate_failure,omitempty"` // Chỉ dùng để test thanh toán
}

type ReservationResponse struct {
	Success       bool         `json:"success"`
	Message       string       `json:"message"`
	ReservationID string       `json:"reservation_id,omitempty"`
	AccessCode    string       `json:"access_code,omitempty"`
	Spot          *ParkingSpot `json:"spot,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	PaymentID     string       `json:"payment_id,omitempty"`
	Amount        float64      `json:"amount,omitempty"`
}

type ReleaseRequest struct {
	Reason string `json:"reason,omitempty"`
}

type ExtendRequest struct {
	AdditionalMinutes int `json:"additional_minutes" binding:"required,gt=0"`
}
