package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
)

type pgDeviceRepository struct {
	db *sql.DB
}

func NewPgDeviceRepository(db *sql.DB) repository.DeviceRepository {
	return &pgDeviceRepository{db: db}
}

const deviceColumns = `id, thing_name, device_type, spot_id, barrier_id, firmware_version,
	last_seen_at, status, ip_address, mac_address, last_rssi, created_at, updated_at`

func scanDevice(row interface{ Scan(...interface{}) error }) (*domain.Device, error) {
	device := &domain.Device{}
	var firmware, ipAddress, macAddress sql.NullString
	err := row.Scan(
		&device.ID, &device.ThingName, &device.DeviceType, &device.SpotID, &device.BarrierID,
		&firmware, &device.LastSeenAt, &device.Status, &ipAddress, &macAddress,
		&device.LastRssi, &device.CreatedAt, &device.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if firmware.Valid {
		device.FirmwareVersion = firmware.String
	}
	if ipAddress.Valid {
		device.IPAddress = ipAddress.String
	}
	if macAddress.Valid {
		device.MacAddress = macAddress.String
	}
	if device.LastSeenAt.Valid {
		device.LastSeenAt.Time = device.LastSeenAt.Time.In(time.UTC)
	}
	device.CreatedAt = device.CreatedAt.In(time.UTC)
	device.UpdatedAt = device.UpdatedAt.In(time.UTC)
	return device, nil
}

// CreateOrUpdate là upsert theo thing_name: thiết bị khởi động lại đăng ký
// lại thì giữ nguyên id và created_at.
func (r *pgDeviceRepository) CreateOrUpdate(ctx context.Context, device *domain.Device) (*domain.Device, error) {
	query := `INSERT INTO devices (thing_name, device_type, spot_id, barrier_id, firmware_version, last_seen_at, status, ip_address, mac_address, last_rssi, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           ON CONFLICT (thing_name) DO UPDATE
	               SET device_type = EXCLUDED.device_type, spot_id = EXCLUDED.spot_id,
	                   barrier_id = EXCLUDED.barrier_id, firmware_version = EXCLUDED.firmware_version,
	                   last_seen_at = EXCLUDED.last_seen_at, status = EXCLUDED.status,
	                   ip_address = EXCLUDED.ip_address, mac_address = EXCLUDED.mac_address,
	                   last_rssi = EXCLUDED.last_rssi, updated_at = CURRENT_TIMESTAMP
	           RETURNING ` + deviceColumns

	status := device.Status
	if status == "" {
		status = domain.DeviceUnknown
	}
	out, err := scanDevice(r.db.QueryRowContext(ctx, query,
		device.ThingName, device.DeviceType, device.SpotID, device.BarrierID,
		sql.NullString{String: device.FirmwareVersion, Valid: device.FirmwareVersion != ""},
		device.LastSeenAt, status,
		sql.NullString{String: device.IPAddress, Valid: device.IPAddress != ""},
		sql.NullString{String: device.MacAddress, Valid: device.MacAddress != ""},
		device.LastRssi,
	))
	if err != nil {
		return nil, fmt.Errorf("DeviceRepository.CreateOrUpdate: %w", err)
	}
	return out, nil
}

func (r *pgDeviceRepository) FindByThingName(ctx context.Context, thingName string) (*domain.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE thing_name = $1`
	device, err := scanDevice(r.db.QueryRowContext(ctx, query, thingName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("DeviceRepository.FindByThingName: %w", err)
	}
	return device, nil
}

func (r *pgDeviceRepository) FindAll(ctx context.Context) ([]domain.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY thing_name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("DeviceRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var devices []domain.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("DeviceRepository.FindAll (scanning row): %w", err)
		}
		devices = append(devices, *device)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("DeviceRepository.FindAll (rows error): %w", err)
	}
	return devices, nil
}

func (r *pgDeviceRepository) UpdateStatus(ctx context.Context, thingName string, status domain.DeviceStatus, lastSeenAt time.Time) error {
	query := `UPDATE devices SET status = $1, last_seen_at = $2, updated_at = CURRENT_TIMESTAMP WHERE thing_name = $3`
	result, err := r.db.ExecContext(ctx, query, status, lastSeenAt, thingName)
	if err != nil {
		return fmt.Errorf("DeviceRepository.UpdateStatus: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeviceRepository.UpdateStatus (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: không tìm thấy thiết bị '%s' để cập nhật trạng thái", repository.ErrNotFound, thingName)
	}
	return nil
}
