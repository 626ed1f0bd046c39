package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"github.com/lib/pq"
)

type pgSpotRepository struct {
	db *sql.DB
}

func NewPgSpotRepository(db *sql.DB) repository.SpotRepository {
	return &pgSpotRepository{db: db}
}

const spotColumns = `spot_id, status, reserved_by, reserved_by_email, reservation_start, reservation_end,
	duration_minutes, force_signal, last_status_update_source, last_update, created_at, updated_at`

func scanSpot(row interface{ Scan(...interface{}) error }) (*domain.ParkingSpot, error) {
	spot := &domain.ParkingSpot{}
	var source sql.NullString
	err := row.Scan(
		&spot.SpotID, &spot.Status, &spot.ReservedBy, &spot.ReservedByEmail,
		&spot.ReservationStart, &spot.ReservationEnd, &spot.DurationMinutes,
		&spot.ForceSignal, &source, &spot.LastUpdate, &spot.CreatedAt, &spot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if source.Valid {
		spot.LastStatusUpdateSource = source.String
	}
	spot.LastUpdate = spot.LastUpdate.In(time.UTC)
	spot.CreatedAt = spot.CreatedAt.In(time.UTC)
	spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
	return spot, nil
}

func (r *pgSpotRepository) Create(ctx context.Context, spot *domain.ParkingSpot) (*domain.ParkingSpot, error) {
	query := `INSERT INTO parking_spots (spot_id, status, last_status_update_source, last_update, created_at, updated_at)
	           VALUES ($1, $2, $3, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING last_update, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		spot.SpotID, spot.Status,
		sql.NullString{String: spot.LastStatusUpdateSource, Valid: spot.LastStatusUpdateSource != ""},
	).Scan(&spot.LastUpdate, &spot.CreatedAt, &spot.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, fmt.Errorf("%w: chỗ đỗ '%s' đã tồn tại", repository.ErrDuplicateEntry, spot.SpotID)
		}
		return nil, fmt.Errorf("SpotRepository.Create: %w", err)
	}
	spot.LastUpdate = spot.LastUpdate.In(time.UTC)
	spot.CreatedAt = spot.CreatedAt.In(time.UTC)
	spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
	return spot, nil
}

func (r *pgSpotRepository) FindByID(ctx context.Context, spotID string) (*domain.ParkingSpot, error) {
	query := `SELECT ` + spotColumns + ` FROM parking_spots WHERE spot_id = $1`
	spot, err := scanSpot(r.db.QueryRowContext(ctx, query, spotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SpotRepository.FindByID: %w", err)
	}
	return spot, nil
}

func (r *pgSpotRepository) FindAll(ctx context.Context) ([]domain.ParkingSpot, error) {
	query := `SELECT ` + spotColumns + ` FROM parking_spots ORDER BY spot_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("SpotRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var spots []domain.ParkingSpot
	for rows.Next() {
		spot, err := scanSpot(rows)
		if err != nil {
			return nil, fmt.Errorf("SpotRepository.FindAll (scanning row): %w", err)
		}
		spots = append(spots, *spot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SpotRepository.FindAll (rows error): %w", err)
	}
	return spots, nil
}

func (r *pgSpotRepository) CountByStatus(ctx context.Context) (domain.OccupancyCounts, error) {
	query := `SELECT status, COUNT(*) FROM parking_spots GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return domain.OccupancyCounts{}, fmt.Errorf("SpotRepository.CountByStatus: %w", err)
	}
	defer rows.Close()

	var counts domain.OccupancyCounts
	for rows.Next() {
		var status domain.SpotStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return domain.OccupancyCounts{}, fmt.Errorf("SpotRepository.CountByStatus (scanning row): %w", err)
		}
		counts.Total += n
		switch status {
		case domain.SpotFree:
			counts.Free = n
		case domain.SpotReserved:
			counts.Reserved = n
		case domain.SpotOccupied:
			counts.Occupied = n
		}
	}
	if err = rows.Err(); err != nil {
		return domain.OccupancyCounts{}, fmt.Errorf("SpotRepository.CountByStatus (rows error): %w", err)
	}
	return counts, nil
}

// ConditionalTransition là primitive tương tranh duy nhất của bảng: một
// UPDATE có điều kiện trên status. Hai request đua nhau trên cùng một chỗ
// thì chỉ một UPDATE khớp; request thua nhận ErrConflict.
func (r *pgSpotRepository) ConditionalTransition(ctx context.Context, spotID string, expectFrom domain.SpotStatus, mut domain.SpotMutation) (*domain.ParkingSpot, error) {
	query := `UPDATE parking_spots
	           SET status = $1, reserved_by = $2, reserved_by_email = $3, reservation_start = $4,
	               reservation_end = $5, duration_minutes = $6,
	               force_signal = COALESCE($7, force_signal),
	               last_status_update_source = $8,
	               last_update = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
	           WHERE spot_id = $9 AND status = $10
	           RETURNING ` + spotColumns
	spot, err := scanSpot(r.db.QueryRowContext(ctx, query,
		mut.Status, mut.ReservedBy, mut.ReservedByEmail, mut.ReservationStart,
		mut.ReservationEnd, mut.DurationMinutes, mut.ForceSignal,
		sql.NullString{String: mut.Source, Valid: mut.Source != ""},
		spotID, expectFrom,
	))
	if err == nil {
		return spot, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("SpotRepository.ConditionalTransition: %w", err)
	}

	// 0 hàng: phân biệt chỗ không tồn tại với chỗ đang ở trạng thái khác.
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM parking_spots WHERE spot_id = $1)`, spotID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("SpotRepository.ConditionalTransition (checking existence): %w", err)
	}
	if !exists {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrConflict
}

func (r *pgSpotRepository) FindExpiredReservations(ctx context.Context, now time.Time) ([]domain.ParkingSpot, error) {
	query := `SELECT ` + spotColumns + ` FROM parking_spots
	           WHERE status = $1 AND reservation_end IS NOT NULL AND reservation_end <= $2
	           ORDER BY spot_id`
	rows, err := r.db.QueryContext(ctx, query, domain.SpotReserved, now)
	if err != nil {
		return nil, fmt.Errorf("SpotRepository.FindExpiredReservations: %w", err)
	}
	defer rows.Close()

	var spots []domain.ParkingSpot
	for rows.Next() {
		spot, err := scanSpot(rows)
		if err != nil {
			return nil, fmt.Errorf("SpotRepository.FindExpiredReservations (scanning row): %w", err)
		}
		spots = append(spots, *spot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SpotRepository.FindExpiredReservations (rows error): %w", err)
	}
	return spots, nil
}

func (r *pgSpotRepository) FindActiveByHolder(ctx context.Context, userID string) (*domain.ParkingSpot, error) {
	query := `SELECT ` + spotColumns + ` FROM parking_spots
	           WHERE reserved_by = $1 AND status <> $2 LIMIT 1`
	spot, err := scanSpot(r.db.QueryRowContext(ctx, query, userID, domain.SpotFree))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SpotRepository.FindActiveByHolder: %w", err)
	}
	return spot, nil
}

func (r *pgSpotRepository) Delete(ctx context.Context, spotID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM parking_spots WHERE spot_id = $1`, spotID)
	if err != nil {
		return fmt.Errorf("SpotRepository.Delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("SpotRepository.Delete (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
