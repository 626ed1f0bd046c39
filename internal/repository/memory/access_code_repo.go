package memory

import (
	"context"
	"sync"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"gopkg.in/guregu/null.v4"
)

// AccessCodeRepo giữ mọi bản ghi mã trong codes (theo id tăng dần) và một
// chỉ mục activeByCode: mỗi giá trị mã chỉ có tối đa một bản ghi ACTIVE.
type AccessCodeRepo struct {
	mu           sync.Mutex
	nextID       int
	codes        []*domain.AccessCode
	activeByCode map[string]*domain.AccessCode
}

func NewAccessCodeRepo() *AccessCodeRepo {
	return &AccessCodeRepo{nextID: 1, activeByCode: make(map[string]*domain.AccessCode)}
}

func (r *AccessCodeRepo) Create(ctx context.Context, code *domain.AccessCode) (*domain.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.activeByCode[code.Code]; ok {
		return nil, repository.ErrDuplicateEntry
	}
	stored := *code
	stored.ID = r.nextID
	r.nextID++
	stored.Status = domain.CodeActive
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.codes = append(r.codes, &stored)
	r.activeByCode[stored.Code] = &stored
	out := stored
	return &out, nil
}

func (r *AccessCodeRepo) FindActiveByCode(ctx context.Context, code string) (*domain.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.activeByCode[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r *AccessCodeRepo) FindLatestByCode(ctx context.Context, code string) (*domain.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.codes) - 1; i >= 0; i-- {
		if r.codes[i].Code == code {
			out := *r.codes[i]
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *AccessCodeRepo) FindActiveByReservationID(ctx context.Context, reservationID string) (*domain.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.activeByCode {
		if c.ReservationID == reservationID {
			out := *c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *AccessCodeRepo) MarkUsedIfActive(ctx context.Context, code string, usedAt time.Time) (*domain.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.activeByCode[code]
	if !ok {
		return nil, repository.ErrConflict
	}
	c.Status = domain.CodeUsed
	c.UsedAt = null.TimeFrom(usedAt)
	delete(r.activeByCode, code)
	out := *c
	return &out, nil
}

func (r *AccessCodeRepo) InvalidateIfActive(ctx context.Context, code string, to domain.AccessCodeStatus, at time.Time) (*domain.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.activeByCode[code]
	if !ok {
		return nil, repository.ErrConflict
	}
	c.Status = to
	c.InvalidatedAt = null.TimeFrom(at)
	delete(r.activeByCode, code)
	out := *c
	return &out, nil
}

func (r *AccessCodeRepo) UpdateExpiry(ctx context.Context, reservationID string, newExpiry time.Time) (*domain.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.activeByCode {
		if c.ReservationID == reservationID {
			c.ExpiresAt = newExpiry
			out := *c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *AccessCodeRepo) FindExpired(ctx context.Context, now time.Time) ([]domain.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []domain.AccessCode
	for _, c := range r.activeByCode {
		if !c.ExpiresAt.After(now) {
			expired = append(expired, *c)
		}
	}
	return expired, nil
}
