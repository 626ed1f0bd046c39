package domain

import "time"

// Loại sự kiện đẩy qua websocket cho client realtime.
const (
	EventSpotUpdated         = "spot_updated"
	EventReservationCreated  = "reservation_created"
	EventReservationEnded    = "reservation_ended"
	EventReservationExtended = "reservation_extended"
	EventBarrierAction       = "barrier_action"
	EventAccessDecision      = "access_decision"
	EventCodeIssued          = "code_issued"
	EventCodeInvalidated     = "code_invalidated"
	EventStatusSnapshot      = "status_snapshot"
)

// Event là một thông báo fan-out. Payload là dữ liệu đã sẵn sàng
// marshal JSON; notifier không được chặn luồng nghiệp vụ.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Notifier phát sự kiện best-effort tới mọi subscriber đang kết nối.
type Notifier interface {
	Publish(event Event)
}

// NopNotifier dùng khi chạy không có websocket hub (test, tool CLI).
type NopNotifier struct{}

func (NopNotifier) Publish(Event) {}
