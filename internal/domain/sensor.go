package domain

// SensorUpdateRequest là payload từ cảm biến chỗ đỗ (ESP32) báo trạng thái
// vật lý của một chỗ. Occupied = true nghĩa là có xe đang đứng trên chỗ.
type SensorUpdateRequest struct {
	SpotID      string `json:"spot_id" binding:"required"`
	Occupied    *bool  `json:"occupied" binding:"required"`
	ForceSignal *int   `json:"force_signal,omitempty"`
	SensorID    string `json:"sensor_id,omitempty"`
}

type SensorUpdateResponse struct {
	Success   bool          `json:"success"`
	SpotID    string        `json:"spot_id"`
	OldStatus SpotStatus    `json:"old_status"`
	NewStatus SpotStatus    `json:"new_status"`
	Message   string        `json:"message,omitempty"`
}
