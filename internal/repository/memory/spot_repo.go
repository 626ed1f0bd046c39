package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
)

// spotEntry giữ mutex riêng cho từng chỗ đỗ: hai chuyển tiếp trên cùng một
// chỗ tuần tự hóa với nhau, các chỗ khác nhau không chặn nhau.
type spotEntry struct {
	mu   sync.Mutex
	spot domain.ParkingSpot
}

type SpotRepo struct {
	mu    sync.RWMutex
	spots map[string]*spotEntry
}

func NewSpotRepo() *SpotRepo {
	return &SpotRepo{spots: make(map[string]*spotEntry)}
}

func (r *SpotRepo) Create(ctx context.Context, spot *domain.ParkingSpot) (*domain.ParkingSpot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.spots[spot.SpotID]; ok {
		return nil, repository.ErrDuplicateEntry
	}
	now := time.Now()
	s := *spot
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	s.LastUpdate = now
	r.spots[spot.SpotID] = &spotEntry{spot: s}
	out := s
	return &out, nil
}

func (r *SpotRepo) FindByID(ctx context.Context, spotID string) (*domain.ParkingSpot, error) {
	r.mu.RLock()
	entry, ok := r.spots[spotID]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := entry.spot
	return &out, nil
}

func (r *SpotRepo) FindAll(ctx context.Context) ([]domain.ParkingSpot, error) {
	r.mu.RLock()
	entries := make([]*spotEntry, 0, len(r.spots))
	for _, e := range r.spots {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	spots := make([]domain.ParkingSpot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		spots = append(spots, e.spot)
		e.mu.Unlock()
	}
	// Sắp theo spot_id để output ổn định ("a1", "a10", "a2" theo thứ tự chuỗi).
	sort.Slice(spots, func(i, j int) bool { return spots[i].SpotID < spots[j].SpotID })
	return spots, nil
}

func (r *SpotRepo) CountByStatus(ctx context.Context) (domain.OccupancyCounts, error) {
	spots, err := r.FindAll(ctx)
	if err != nil {
		return domain.OccupancyCounts{}, err
	}
	counts := domain.OccupancyCounts{Total: len(spots)}
	for _, s := range spots {
		switch s.Status {
		case domain.SpotFree:
			counts.Free++
		case domain.SpotReserved:
			counts.Reserved++
		case domain.SpotOccupied:
			counts.Occupied++
		}
	}
	return counts, nil
}

func (r *SpotRepo) ConditionalTransition(ctx context.Context, spotID string, expectFrom domain.SpotStatus, mut domain.SpotMutation) (*domain.ParkingSpot, error) {
	r.mu.RLock()
	entry, ok := r.spots[spotID]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.spot.Status != expectFrom {
		return nil, repository.ErrConflict
	}
	now := time.Now()
	entry.spot.Status = mut.Status
	entry.spot.ReservedBy = mut.ReservedBy
	entry.spot.ReservedByEmail = mut.ReservedByEmail
	entry.spot.ReservationStart = mut.ReservationStart
	entry.spot.ReservationEnd = mut.ReservationEnd
	entry.spot.DurationMinutes = mut.DurationMinutes
	if mut.ForceSignal.Valid {
		entry.spot.ForceSignal = mut.ForceSignal
	}
	entry.spot.LastStatusUpdateSource = mut.Source
	entry.spot.LastUpdate = now
	entry.spot.UpdatedAt = now
	out := entry.spot
	return &out, nil
}

func (r *SpotRepo) FindExpiredReservations(ctx context.Context, now time.Time) ([]domain.ParkingSpot, error) {
	spots, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	var expired []domain.ParkingSpot
	for _, s := range spots {
		if s.Status == domain.SpotReserved && s.ReservationEnd.Valid && !s.ReservationEnd.Time.After(now) {
			expired = append(expired, s)
		}
	}
	return expired, nil
}

func (r *SpotRepo) FindActiveByHolder(ctx context.Context, userID string) (*domain.ParkingSpot, error) {
	spots, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range spots {
		if s.Status != domain.SpotFree && s.ReservedBy.Valid && s.ReservedBy.String == userID {
			out := s
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *SpotRepo) Delete(ctx context.Context, spotID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.spots[spotID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.spots, spotID)
	return nil
}
