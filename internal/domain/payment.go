package domain

import "time"

type PaymentStatus string

const (
	PaymentApproved PaymentStatus = "approved"
	PaymentDeclined PaymentStatus = "declined"
)

// Giá thuê chỗ đỗ theo giờ (USD). Tính tiền theo tỷ lệ phút.
const HourlyRateUSD = 5.0

// Payment là bản ghi một giao dịch mô phỏng. Không gọi cổng thanh toán
// thật; simulator chỉ tạo PaymentID/TransactionRef và quyết định approve/decline.
type Payment struct {
	PaymentID      string        `json:"payment_id"`      // "PAY-..."
	TransactionRef string        `json:"transaction_ref"` // "TXN-..."
	ReservationID  string        `json:"reservation_id,omitempty"`
	UserID         string        `json:"user_id"`
	UserEmail      string        `json:"user_email"`
	SpotID         string        `json:"spot_id"`
	Amount         float64       `json:"amount"`
	Currency       string        `json:"currency"`
	DurationMin    int           `json:"duration_minutes"`
	Status         PaymentStatus `json:"status"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// AmountForDuration tính phí cho thời lượng đặt chỗ, làm tròn 2 chữ số.
func AmountForDuration(minutes int) float64 {
	amount := HourlyRateUSD * float64(minutes) / 60.0
	return float64(int(amount*100+0.5)) / 100
}
