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

type pgPaymentRepository struct {
	db *sql.DB
}

func NewPgPaymentRepository(db *sql.DB) repository.PaymentRepository {
	return &pgPaymentRepository{db: db}
}

const paymentColumns = `payment_id, transaction_ref, reservation_id, user_id, user_email, spot_id,
	amount, currency, duration_minutes, status, failure_reason, created_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (*domain.Payment, error) {
	p := &domain.Payment{}
	var reservationID, failureReason sql.NullString
	err := row.Scan(
		&p.PaymentID, &p.TransactionRef, &reservationID, &p.UserID, &p.UserEmail, &p.SpotID,
		&p.Amount, &p.Currency, &p.DurationMin, &p.Status, &failureReason, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reservationID.Valid {
		p.ReservationID = reservationID.String
	}
	if failureReason.Valid {
		p.FailureReason = failureReason.String
	}
	p.CreatedAt = p.CreatedAt.In(time.UTC)
	return p, nil
}

func (r *pgPaymentRepository) Create(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	query := `INSERT INTO payments (payment_id, transaction_ref, reservation_id, user_id, user_email, spot_id, amount, currency, duration_minutes, status, failure_reason, created_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, CURRENT_TIMESTAMP)
	           RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query,
		p.PaymentID, p.TransactionRef,
		sql.NullString{String: p.ReservationID, Valid: p.ReservationID != ""},
		p.UserID, p.UserEmail, p.SpotID, p.Amount, p.Currency, p.DurationMin, p.Status,
		sql.NullString{String: p.FailureReason, Valid: p.FailureReason != ""},
	).Scan(&p.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, fmt.Errorf("%w: giao dịch '%s' đã tồn tại", repository.ErrDuplicateEntry, p.PaymentID)
		}
		return nil, fmt.Errorf("PaymentRepository.Create: %w", err)
	}
	p.CreatedAt = p.CreatedAt.In(time.UTC)
	return p, nil
}

func (r *pgPaymentRepository) FindByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("PaymentRepository.FindByID: %w", err)
	}
	return p, nil
}

func (r *pgPaymentRepository) FindByUserID(ctx context.Context, userID string, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + paymentColumns + ` FROM payments
	           WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("PaymentRepository.FindByUserID: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("PaymentRepository.FindByUserID (scanning row): %w", err)
		}
		payments = append(payments, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("PaymentRepository.FindByUserID (rows error): %w", err)
	}
	return payments, nil
}
