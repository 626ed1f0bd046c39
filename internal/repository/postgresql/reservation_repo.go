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

type pgReservationRepository struct {
	db *sql.DB
}

func NewPgReservationRepository(db *sql.DB) repository.ReservationRepository {
	return &pgReservationRepository{db: db}
}

const reservationColumns = `id, spot_id, user_id, user_email, start_time, end_time, duration_minutes,
	status, access_code, ended_at, end_reason, created_at, updated_at`

func scanReservation(row interface{ Scan(...interface{}) error }) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	err := row.Scan(
		&res.ID, &res.SpotID, &res.UserID, &res.UserEmail, &res.StartTime, &res.EndTime,
		&res.DurationMinutes, &res.Status, &res.AccessCode, &res.EndedAt, &res.EndReason,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.StartTime = res.StartTime.In(time.UTC)
	res.EndTime = res.EndTime.In(time.UTC)
	res.CreatedAt = res.CreatedAt.In(time.UTC)
	res.UpdatedAt = res.UpdatedAt.In(time.UTC)
	return res, nil
}

func (r *pgReservationRepository) Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	query := `INSERT INTO reservations (id, spot_id, user_id, user_email, start_time, end_time, duration_minutes, status, access_code, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		res.ID, res.SpotID, res.UserID, res.UserEmail, res.StartTime, res.EndTime,
		res.DurationMinutes, res.Status, res.AccessCode,
	).Scan(&res.CreatedAt, &res.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, fmt.Errorf("%w: đặt chỗ '%s' đã tồn tại", repository.ErrDuplicateEntry, res.ID)
		}
		return nil, fmt.Errorf("ReservationRepository.Create: %w", err)
	}
	res.CreatedAt = res.CreatedAt.In(time.UTC)
	res.UpdatedAt = res.UpdatedAt.In(time.UTC)
	return res, nil
}

func (r *pgReservationRepository) FindByID(ctx context.Context, id string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.FindByID: %w", err)
	}
	return res, nil
}

func (r *pgReservationRepository) FindActiveBySpotID(ctx context.Context, spotID string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE spot_id = $1 AND status = $2
	           ORDER BY created_at DESC LIMIT 1`
	res, err := scanReservation(r.db.QueryRowContext(ctx, query, spotID, domain.ReservationActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.FindActiveBySpotID: %w", err)
	}
	return res, nil
}

func (r *pgReservationRepository) FindActiveByUserID(ctx context.Context, userID string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE user_id = $1 AND status = $2
	           ORDER BY created_at DESC LIMIT 1`
	res, err := scanReservation(r.db.QueryRowContext(ctx, query, userID, domain.ReservationActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.FindActiveByUserID: %w", err)
	}
	return res, nil
}

func (r *pgReservationRepository) FindByUserID(ctx context.Context, userID string, limit int) ([]domain.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ReservationRepository.FindByUserID: %w", err)
	}
	defer rows.Close()

	var result []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("ReservationRepository.FindByUserID (scanning row): %w", err)
		}
		result = append(result, *res)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ReservationRepository.FindByUserID (rows error): %w", err)
	}
	return result, nil
}

func (r *pgReservationRepository) CloseIfActive(ctx context.Context, id string, status domain.ReservationStatus, endedAt time.Time, reason string) (*domain.Reservation, error) {
	query := `UPDATE reservations
	           SET status = $1, ended_at = $2, end_reason = $3, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $4 AND status = $5
	           RETURNING ` + reservationColumns
	res, err := scanReservation(r.db.QueryRowContext(ctx, query, status, endedAt, reason, id, domain.ReservationActive))
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ReservationRepository.CloseIfActive: %w", err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reservations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("ReservationRepository.CloseIfActive (checking existence): %w", err)
	}
	if !exists {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrConflict
}

func (r *pgReservationRepository) ExtendIfActive(ctx context.Context, id string, newEnd time.Time, newDurationMinutes int) (*domain.Reservation, error) {
	query := `UPDATE reservations
	           SET end_time = $1, duration_minutes = $2, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $3 AND status = $4
	           RETURNING ` + reservationColumns
	res, err := scanReservation(r.db.QueryRowContext(ctx, query, newEnd, newDurationMinutes, id, domain.ReservationActive))
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ReservationRepository.ExtendIfActive: %w", err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reservations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("ReservationRepository.ExtendIfActive (checking existence): %w", err)
	}
	if !exists {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrConflict
}
