package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"gopkg.in/guregu/null.v4"
)

type ReservationRepo struct {
	mu           sync.Mutex
	reservations map[string]*domain.Reservation
}

func NewReservationRepo() *ReservationRepo {
	return &ReservationRepo{reservations: make(map[string]*domain.Reservation)}
}

func (r *ReservationRepo) Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reservations[res.ID]; ok {
		return nil, repository.ErrDuplicateEntry
	}
	now := time.Now()
	stored := *res
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.reservations[res.ID] = &stored
	out := stored
	return &out, nil
}

func (r *ReservationRepo) FindByID(ctx context.Context, id string) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *res
	return &out, nil
}

func (r *ReservationRepo) FindActiveBySpotID(ctx context.Context, spotID string) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.reservations {
		if res.SpotID == spotID && res.Status == domain.ReservationActive {
			out := *res
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ReservationRepo) FindActiveByUserID(ctx context.Context, userID string) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.reservations {
		if res.UserID == userID && res.Status == domain.ReservationActive {
			out := *res
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ReservationRepo) FindByUserID(ctx context.Context, userID string, limit int) ([]domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Reservation
	for _, res := range r.reservations {
		if res.UserID == userID {
			result = append(result, *res)
		}
	}
	// Mới nhất trước.
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *ReservationRepo) CloseIfActive(ctx context.Context, id string, status domain.ReservationStatus, endedAt time.Time, reason string) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if res.Status != domain.ReservationActive {
		return nil, repository.ErrConflict
	}
	res.Status = status
	res.EndedAt = null.TimeFrom(endedAt)
	res.EndReason = null.StringFrom(reason)
	res.UpdatedAt = time.Now()
	out := *res
	return &out, nil
}

func (r *ReservationRepo) ExtendIfActive(ctx context.Context, id string, newEnd time.Time, newDurationMinutes int) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if res.Status != domain.ReservationActive {
		return nil, repository.ErrConflict
	}
	res.EndTime = newEnd
	res.DurationMinutes = newDurationMinutes
	res.UpdatedAt = time.Now()
	out := *res
	return &out, nil
}
