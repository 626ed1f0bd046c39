package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
)

type pgAuditLogRepository struct {
	db *sql.DB
}

func NewPgAuditLogRepository(db *sql.DB) repository.AuditLogRepository {
	return &pgAuditLogRepository{db: db}
}

func (r *pgAuditLogRepository) Append(ctx context.Context, entry *domain.AuditLog) error {
	query := `INSERT INTO audit_logs (event_type, decision, reason, spot_id, user_email, masked_code, barrier_id, detail, created_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
	           RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		entry.EventType, entry.Decision,
		sql.NullString{String: entry.Reason, Valid: entry.Reason != ""},
		entry.SpotID, entry.UserEmail, entry.MaskedCode, entry.BarrierID, entry.Detail,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("AuditLogRepository.Append: %w", err)
	}
	entry.CreatedAt = entry.CreatedAt.In(time.UTC)
	return nil
}

func (r *pgAuditLogRepository) Find(ctx context.Context, q domain.AuditQuery) ([]domain.AuditLog, error) {
	query := `SELECT id, event_type, decision, COALESCE(reason, ''), spot_id, user_email, masked_code, barrier_id, detail, created_at
	           FROM audit_logs WHERE 1=1`
	var args []interface{}
	if q.EventType != "" {
		args = append(args, q.EventType)
		query += ` AND event_type = $` + strconv.Itoa(len(args))
	}
	if q.Decision != "" {
		args = append(args, q.Decision)
		query += ` AND decision = $` + strconv.Itoa(len(args))
	}
	if q.SpotID != "" {
		args = append(args, q.SpotID)
		query += ` AND spot_id = $` + strconv.Itoa(len(args))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` ORDER BY id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("AuditLogRepository.Find: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLog
	for rows.Next() {
		var e domain.AuditLog
		if err := rows.Scan(
			&e.ID, &e.EventType, &e.Decision, &e.Reason, &e.SpotID, &e.UserEmail,
			&e.MaskedCode, &e.BarrierID, &e.Detail, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("AuditLogRepository.Find (scanning row): %w", err)
		}
		e.CreatedAt = e.CreatedAt.In(time.UTC)
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("AuditLogRepository.Find (rows error): %w", err)
	}
	return entries, nil
}
