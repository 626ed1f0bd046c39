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

// pgAccessCodeRepository dựa vào partial unique index trên bảng access_codes:
//
//	CREATE UNIQUE INDEX access_codes_active_code_key
//	    ON access_codes (code) WHERE status = 'active';
//
// nên INSERT trùng mã active trả về unique_violation, còn mã đã dùng/hết hạn
// có thể được cấp lại.
type pgAccessCodeRepository struct {
	db *sql.DB
}

func NewPgAccessCodeRepository(db *sql.DB) repository.AccessCodeRepository {
	return &pgAccessCodeRepository{db: db}
}

const accessCodeColumns = `id, code, reservation_id, spot_id, user_id, user_email, status,
	created_at, expires_at, used_at, invalidated_at`

func scanAccessCode(row interface{ Scan(...interface{}) error }) (*domain.AccessCode, error) {
	c := &domain.AccessCode{}
	err := row.Scan(
		&c.ID, &c.Code, &c.ReservationID, &c.SpotID, &c.UserID, &c.UserEmail, &c.Status,
		&c.CreatedAt, &c.ExpiresAt, &c.UsedAt, &c.InvalidatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.In(time.UTC)
	c.ExpiresAt = c.ExpiresAt.In(time.UTC)
	return c, nil
}

func (r *pgAccessCodeRepository) Create(ctx context.Context, code *domain.AccessCode) (*domain.AccessCode, error) {
	query := `INSERT INTO access_codes (code, reservation_id, spot_id, user_id, user_email, status, created_at, expires_at)
	           VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, $7)
	           RETURNING id, created_at`
	code.Status = domain.CodeActive
	err := r.db.QueryRowContext(ctx, query,
		code.Code, code.ReservationID, code.SpotID, code.UserID, code.UserEmail,
		code.Status, code.ExpiresAt,
	).Scan(&code.ID, &code.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, fmt.Errorf("%w: mã '%s' đang active", repository.ErrDuplicateEntry, code.Code)
		}
		return nil, fmt.Errorf("AccessCodeRepository.Create: %w", err)
	}
	code.CreatedAt = code.CreatedAt.In(time.UTC)
	return code, nil
}

func (r *pgAccessCodeRepository) FindActiveByCode(ctx context.Context, code string) (*domain.AccessCode, error) {
	query := `SELECT ` + accessCodeColumns + ` FROM access_codes WHERE code = $1 AND status = $2`
	c, err := scanAccessCode(r.db.QueryRowContext(ctx, query, code, domain.CodeActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("AccessCodeRepository.FindActiveByCode: %w", err)
	}
	return c, nil
}

func (r *pgAccessCodeRepository) FindLatestByCode(ctx context.Context, code string) (*domain.AccessCode, error) {
	query := `SELECT ` + accessCodeColumns + ` FROM access_codes
	           WHERE code = $1 ORDER BY id DESC LIMIT 1`
	c, err := scanAccessCode(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("AccessCodeRepository.FindLatestByCode: %w", err)
	}
	return c, nil
}

func (r *pgAccessCodeRepository) FindActiveByReservationID(ctx context.Context, reservationID string) (*domain.AccessCode, error) {
	query := `SELECT ` + accessCodeColumns + ` FROM access_codes
	           WHERE reservation_id = $1 AND status = $2`
	c, err := scanAccessCode(r.db.QueryRowContext(ctx, query, reservationID, domain.CodeActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("AccessCodeRepository.FindActiveByReservationID: %w", err)
	}
	return c, nil
}

// MarkUsedIfActive là bước one-shot: UPDATE có điều kiện trên status nên hai
// xe cùng trình một mã thì chỉ một xe thắng.
func (r *pgAccessCodeRepository) MarkUsedIfActive(ctx context.Context, code string, usedAt time.Time) (*domain.AccessCode, error) {
	query := `UPDATE access_codes
	           SET status = $1, used_at = $2
	           WHERE code = $3 AND status = $4
	           RETURNING ` + accessCodeColumns
	c, err := scanAccessCode(r.db.QueryRowContext(ctx, query, domain.CodeUsed, usedAt, code, domain.CodeActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("AccessCodeRepository.MarkUsedIfActive: %w", err)
	}
	return c, nil
}

func (r *pgAccessCodeRepository) InvalidateIfActive(ctx context.Context, code string, to domain.AccessCodeStatus, at time.Time) (*domain.AccessCode, error) {
	query := `UPDATE access_codes
	           SET status = $1, invalidated_at = $2
	           WHERE code = $3 AND status = $4
	           RETURNING ` + accessCodeColumns
	c, err := scanAccessCode(r.db.QueryRowContext(ctx, query, to, at, code, domain.CodeActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("AccessCodeRepository.InvalidateIfActive: %w", err)
	}
	return c, nil
}

func (r *pgAccessCodeRepository) UpdateExpiry(ctx context.Context, reservationID string, newExpiry time.Time) (*domain.AccessCode, error) {
	query := `UPDATE access_codes
	           SET expires_at = $1
	           WHERE reservation_id = $2 AND status = $3
	           RETURNING ` + accessCodeColumns
	c, err := scanAccessCode(r.db.QueryRowContext(ctx, query, newExpiry, reservationID, domain.CodeActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("AccessCodeRepository.UpdateExpiry: %w", err)
	}
	return c, nil
}

func (r *pgAccessCodeRepository) FindExpired(ctx context.Context, now time.Time) ([]domain.AccessCode, error) {
	query := `SELECT ` + accessCodeColumns + ` FROM access_codes
	           WHERE status = $1 AND expires_at <= $2 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, domain.CodeActive, now)
	if err != nil {
		return nil, fmt.Errorf("AccessCodeRepository.FindExpired: %w", err)
	}
	defer rows.Close()

	var codes []domain.AccessCode
	for rows.Next() {
		c, err := scanAccessCode(rows)
		if err != nil {
			return nil, fmt.Errorf("AccessCodeRepository.FindExpired (scanning row): %w", err)
		}
		codes = append(codes, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("AccessCodeRepository.FindExpired (rows error): %w", err)
	}
	return codes, nil
}
