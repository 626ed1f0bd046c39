package domain

import (
	"gopkg.in/guregu/null.v4"
	"time"
)

type DeviceStatus string

const (
	DeviceOnline      DeviceStatus = "online"
	DeviceOffline     DeviceStatus = "offline"
	DeviceErrorStatus DeviceStatus = "error" // Phân biệt với domain.BarrierError
	DeviceUnknown     DeviceStatus = "unknown"
)

// Loại thiết bị IoT đã đăng ký với hệ thống.
const (
	DeviceTypeSpotSensor    = "spot_sensor"    // Cảm biến gắn trên từng chỗ đỗ
	DeviceTypeBarrierSensor = "barrier_sensor" // Cảm biến hiện diện tại rào chắn
	DeviceTypeBarrier       = "barrier"        // Bộ điều khiển rào chắn
)

// Device là một thiết bị cảm biến/rào chắn. SpotID chỉ có nghĩa với
// spot_sensor; BarrierID chỉ có nghĩa với barrier và barrier_sensor.
type Device struct {
	ID              int          `json:"id"`
	ThingName       string       `json:"thing_name"` // Thing Name trên AWS IoT
	DeviceType      string       `json:"device_type"`
	SpotID          null.String  `json:"spot_id"`
	BarrierID       null.String  `json:"barrier_id"`
	FirmwareVersion string       `json:"firmware_version,omitempty"`
	LastSeenAt      null.Time    `json:"last_seen_at"`
	Status          DeviceStatus `json:"status"`
	IPAddress       string       `json:"ip_address,omitempty"`
	MacAddress      string       `json:"mac_address,omitempty"`
	LastRssi        null.Int     `json:"last_rssi"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

type RegisterDeviceDTO struct {
	ThingName  string `json:"thing_name" binding:"required"`
	DeviceType string `json:"device_type" binding:"required,oneof=spot_sensor barrier_sensor barrier"`
	SpotID     string `json:"spot_id,omitempty"`
	BarrierID  string `json:"barrier_id,omitempty"`
}

type DeviceHeartbeatDTO struct {
	ThingName       string
	FirmwareVersion string
	LastSeenAt      time.Time
	Status          DeviceStatus
	IPAddress       string
	MacAddress      string
	RSSI            *int
}
