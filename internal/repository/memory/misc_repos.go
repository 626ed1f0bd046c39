package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
)

type AuditLogRepo struct {
	mu      sync.Mutex
	nextID  int
	entries []domain.AuditLog
}

func NewAuditLogRepo() *AuditLogRepo {
	return &AuditLogRepo{nextID: 1}
}

func (r *AuditLogRepo) Append(ctx context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *entry
	stored.ID = r.nextID
	r.nextID++
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, stored)
	return nil
}

func (r *AuditLogRepo) Find(ctx context.Context, q domain.AuditQuery) ([]domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.AuditLog
	for _, e := range r.entries {
		if q.EventType != "" && e.EventType != q.EventType {
			continue
		}
		if q.Decision != "" && e.Decision != q.Decision {
			continue
		}
		if q.SpotID != "" && (!e.SpotID.Valid || e.SpotID.String != q.SpotID) {
			continue
		}
		result = append(result, e)
	}
	// Mới nhất trước, như truy vấn ORDER BY created_at DESC bên postgres.
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

type PaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
}

func NewPaymentRepo() *PaymentRepo {
	return &PaymentRepo{payments: make(map[string]*domain.Payment)}
}

func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.PaymentID]; ok {
		return nil, repository.ErrDuplicateEntry
	}
	stored := *p
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.payments[p.PaymentID] = &stored
	out := stored
	return &out, nil
}

func (r *PaymentRepo) FindByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[paymentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (r *PaymentRepo) FindByUserID(ctx context.Context, userID string, limit int) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Payment
	for _, p := range r.payments {
		if p.UserID == userID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type UserRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	byEmail map[string]*domain.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{byID: make(map[string]*domain.User), byEmail: make(map[string]*domain.User)}
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return nil, repository.ErrDuplicateEntry
	}
	now := time.Now()
	stored := *user
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.byID[stored.ID] = &stored
	r.byEmail[stored.Email] = &stored
	out := stored
	return &out, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *u
	return &out, nil
}

type DeviceRepo struct {
	mu      sync.Mutex
	nextID  int
	devices map[string]*domain.Device
}

func NewDeviceRepo() *DeviceRepo {
	return &DeviceRepo{nextID: 1, devices: make(map[string]*domain.Device)}
}

func (r *DeviceRepo) CreateOrUpdate(ctx context.Context, device *domain.Device) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if existing, ok := r.devices[device.ThingName]; ok {
		existing.DeviceType = device.DeviceType
		existing.SpotID = device.SpotID
		existing.BarrierID = device.BarrierID
		existing.UpdatedAt = now
		out := *existing
		return &out, nil
	}
	stored := *device
	stored.ID = r.nextID
	r.nextID++
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if stored.Status == "" {
		stored.Status = domain.DeviceUnknown
	}
	r.devices[device.ThingName] = &stored
	out := stored
	return &out, nil
}

func (r *DeviceRepo) FindByThingName(ctx context.Context, thingName string) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[thingName]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *d
	return &out, nil
}

func (r *DeviceRepo) FindAll(ctx context.Context) ([]domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	devices := make([]domain.Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, *d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

func (r *DeviceRepo) UpdateStatus(ctx context.Context, thingName string, status domain.DeviceStatus, lastSeenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[thingName]
	if !ok {
		return repository.ErrNotFound
	}
	d.Status = status
	d.LastSeenAt.SetValid(lastSeenAt)
	d.UpdatedAt = time.Now()
	return nil
}
