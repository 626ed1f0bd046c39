package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reservationFixture struct {
	spots    *memory.SpotRepo
	resRepo  *memory.ReservationRepo
	codeRepo *memory.AccessCodeRepo
	codes    *AccessCodeService
	audit    *AuditService
	parking  *ParkingService
	svc      *ReservationService
	now      time.Time
}

func newReservationFixture(t *testing.T, totalSpots int) *reservationFixture {
	t.Helper()
	f := &reservationFixture{
		spots:    memory.NewSpotRepo(),
		resRepo:  memory.NewReservationRepo(),
		codeRepo: memory.NewAccessCodeRepo(),
		now:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.audit = NewAuditService(memory.NewAuditLogRepo())
	f.codes = NewAccessCodeService(f.codeRepo, f.audit, nil)
	payments := NewPaymentService(memory.NewPaymentRepo(), f.audit)
	f.parking = NewParkingService(f.spots, f.resRepo, f.codes, nil)
	f.svc = NewReservationService(f.spots, f.resRepo, f.codes, payments, f.audit, nil, 15, 480, 60)

	f.svc.nowFn = func() time.Time { return f.now }
	f.codes.nowFn = f.svc.nowFn

	require.NoError(t, f.parking.SeedSpots(context.Background(), totalSpots))
	return f
}

func (f *reservationFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path holds spot and issues code", func(t *testing.T) {
		f := newReservationFixture(t, 3)
		resp, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{
			SpotID:          "a1",
			DurationMinutes: 60,
		})
		require.NoError(t, err)
		require.True(t, resp.Success)
		assert.Len(t, resp.AccessCode, 3)
		assert.NotEmpty(t, resp.ReservationID)
		assert.NotEmpty(t, resp.PaymentID)
		assert.InDelta(t, 5.0, resp.Amount, 0.001)

		spot, err := f.spots.FindByID(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, domain.SpotReserved, spot.Status)
		assert.Equal(t, "user-1", spot.ReservedBy.String)
		assert.Equal(t, "an@example.com", spot.ReservedByEmail.String)
	})

	t.Run("default duration applies when omitted", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		resp, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1"})
		require.NoError(t, err)
		res, err := f.resRepo.FindByID(ctx, resp.ReservationID)
		require.NoError(t, err)
		assert.Equal(t, 60, res.DurationMinutes)
	})

	t.Run("duration outside bounds is rejected", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		_, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 5})
		assert.ErrorIs(t, err, ErrInvalidDuration)
		_, err = f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 1000})
		assert.ErrorIs(t, err, ErrInvalidDuration)

		spot, _ := f.spots.FindByID(ctx, "a1")
		assert.Equal(t, domain.SpotFree, spot.Status)
	})

	t.Run("one active reservation per user", func(t *testing.T) {
		f := newReservationFixture(t, 3)
		_, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
		require.NoError(t, err)
		_, err = f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a2", DurationMinutes: 60})
		assert.ErrorIs(t, err, ErrUserHasActiveReservation)
	})

	t.Run("second user loses a held spot", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		_, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
		require.NoError(t, err)
		_, err = f.svc.Reserve(ctx, "user-2", "binh@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
		assert.ErrorIs(t, err, ErrSpotNotAvailable)
	})

	t.Run("declined payment leaves the spot untouched", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		resp, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{
			SpotID:          "a1",
			DurationMinutes: 60,
			SimulateFailure: true,
		})
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.NotEmpty(t, resp.PaymentID)
		assert.Empty(t, resp.AccessCode)

		spot, _ := f.spots.FindByID(ctx, "a1")
		assert.Equal(t, domain.SpotFree, spot.Status)
		_, err = f.resRepo.FindActiveByUserID(ctx, "user-1")
		assert.Error(t, err)
	})

	t.Run("unknown spot", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		_, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "z9", DurationMinutes: 60})
		assert.Error(t, err)
	})
}

func TestReserveConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	f := newReservationFixture(t, 8)

	const workers = 8
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{
				SpotID:          fmt.Sprintf("a%d", n+1),
				DurationMinutes: 60,
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
		} else {
			assert.ErrorIs(t, err, ErrUserHasActiveReservation)
		}
	}
	assert.Equal(t, 1, success, "một người dùng chỉ được giữ một chỗ dù đặt song song")
}

func TestVehicleDepartureEndsReservation(t *testing.T) {
	ctx := context.Background()
	f := newReservationFixture(t, 2)

	resp, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{
		SpotID:          "a1",
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.ConfirmArrival(ctx, "a1"))

	// Xe rời chỗ: cảm biến báo trống.
	_, err = f.parking.HandleSensorUpdate(ctx, domain.SensorUpdateRequest{SpotID: "a1", Occupied: boolPtr(false)})
	require.NoError(t, err)

	spot, err := f.spots.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.SpotFree, spot.Status)
	assert.False(t, spot.ReservedBy.Valid)

	closed, err := f.resRepo.FindByID(ctx, resp.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCompleted, closed.Status)
	assert.Equal(t, "vehicle_departed", closed.EndReason.String)

	code, err := f.codeRepo.FindLatestByCode(ctx, resp.AccessCode)
	require.NoError(t, err)
	assert.Equal(t, domain.CodeCancelled, code.Status)

	// Chu kỳ đặt -> vào -> rời không được khóa người dùng: đặt lại phải thành công.
	resp2, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{
		SpotID:          "a2",
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	require.True(t, resp2.Success)
}

func TestReserveConcurrentSameSpot(t *testing.T) {
	ctx := context.Background()
	f := newReservationFixture(t, 1)

	const workers = 16
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := "user-" + string(rune('a'+n))
			_, err := f.svc.Reserve(ctx, userID, userID+"@example.com", domain.ReservationRequest{
				SpotID:          "a1",
				DurationMinutes: 60,
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
		} else {
			assert.ErrorIs(t, err, ErrSpotNotAvailable)
		}
	}
	assert.Equal(t, 1, success, "chỉ một yêu cầu được giữ chỗ")
}

func TestRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("owner releases, spot freed and code cancelled", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		resp, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
		require.NoError(t, err)

		spot, err := f.svc.Release(ctx, resp.ReservationID, "user-1", false, "")
		require.NoError(t, err)
		assert.Equal(t, domain.SpotFree, spot.Status)

		decision, err := f.codes.Validate(ctx, domain.ValidateCodeRequest{
			Code:           resp.AccessCode,
			SensorPresence: true,
		})
		require.NoError(t, err)
		assert.False(t, decision.Granted)
		assert.Equal(t, domain.ReasonCodeCancelled, decision.Reason)
	})

	t.Run("non-owner is rejected, admin is not", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		resp, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
		require.NoError(t, err)

		_, err = f.svc.Release(ctx, resp.ReservationID, "user-2", false, "")
		assert.ErrorIs(t, err, ErrNotReservationOwner)

		_, err = f.svc.Release(ctx, resp.ReservationID, "admin-1", true, "vi phạm nội quy")
		assert.NoError(t, err)
	})

	t.Run("double release fails", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		resp, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
		require.NoError(t, err)

		_, err = f.svc.Release(ctx, resp.ReservationID, "user-1", false, "")
		require.NoError(t, err)
		_, err = f.svc.Release(ctx, resp.ReservationID, "user-1", false, "")
		assert.Error(t, err)
	})

	t.Run("release frees an occupied spot too", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		resp, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
		require.NoError(t, err)
		require.NoError(t, f.svc.ConfirmArrival(ctx, "a1"))

		spot, err := f.svc.Release(ctx, resp.ReservationID, "user-1", false, "")
		require.NoError(t, err)
		assert.Equal(t, domain.SpotFree, spot.Status)
	})
}

func TestExtend(t *testing.T) {
	ctx := context.Background()

	t.Run("moves reservation end and code expiry", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		resp, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
		require.NoError(t, err)

		extended, err := f.svc.Extend(ctx, resp.ReservationID, "user-1", 30)
		require.NoError(t, err)
		assert.Equal(t, 90, extended.DurationMinutes)
		assert.Equal(t, f.now.Add(90*time.Minute), extended.EndTime)

		// Mã vẫn hợp lệ sau mốc hết hạn ban đầu.
		f.advance(75 * time.Minute)
		decision, err := f.codes.Validate(ctx, domain.ValidateCodeRequest{
			Code:           resp.AccessCode,
			SensorPresence: true,
		})
		require.NoError(t, err)
		assert.True(t, decision.Granted)
	})

	t.Run("total above ceiling is rejected", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		resp, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 460})
		require.NoError(t, err)
		_, err = f.svc.Extend(ctx, resp.ReservationID, "user-1", 30)
		assert.Error(t, err)
	})

	t.Run("non-owner cannot extend", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		resp, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
		require.NoError(t, err)
		_, err = f.svc.Extend(ctx, resp.ReservationID, "user-2", 30)
		assert.ErrorIs(t, err, ErrNotReservationOwner)
	})

	t.Run("ended reservation cannot be extended", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		resp, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
		require.NoError(t, err)
		_, err = f.svc.Release(ctx, resp.ReservationID, "user-1", false, "")
		require.NoError(t, err)
		_, err = f.svc.Extend(ctx, resp.ReservationID, "user-1", 30)
		assert.Error(t, err)
	})
}

func TestExpireDue(t *testing.T) {
	ctx := context.Background()

	t.Run("expired hold returns spot, closes reservation, kills code", func(t *testing.T) {
		f := newReservationFixture(t, 2)
		resp, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
		require.NoError(t, err)

		f.advance(61 * time.Minute)
		count, err := f.svc.ExpireDue(ctx, f.now)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		spot, _ := f.spots.FindByID(ctx, "a1")
		assert.Equal(t, domain.SpotFree, spot.Status)

		res, err := f.resRepo.FindByID(ctx, resp.ReservationID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReservationExpired, res.Status)

		decision, err := f.codes.Validate(ctx, domain.ValidateCodeRequest{Code: resp.AccessCode, SensorPresence: true})
		require.NoError(t, err)
		assert.False(t, decision.Granted)
		assert.Equal(t, domain.ReasonCodeExpired, decision.Reason)
	})

	t.Run("sweep is idempotent", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		_, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
		require.NoError(t, err)

		f.advance(2 * time.Hour)
		count, err := f.svc.ExpireDue(ctx, f.now)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		count, err = f.svc.ExpireDue(ctx, f.now)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("occupied spot is not touched", func(t *testing.T) {
		f := newReservationFixture(t, 1)
		_, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
		require.NoError(t, err)
		require.NoError(t, f.svc.ConfirmArrival(ctx, "a1"))

		f.advance(2 * time.Hour)
		count, err := f.svc.ExpireDue(ctx, f.now)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		spot, _ := f.spots.FindByID(ctx, "a1")
		assert.Equal(t, domain.SpotOccupied, spot.Status)
	})
}

func TestConfirmArrival(t *testing.T) {
	ctx := context.Background()
	f := newReservationFixture(t, 1)
	_, err := f.svc.Reserve(ctx, "user-1", "an@example.com", domain.ReservationRequest{SpotID: "a1", DurationMinutes: 60})
	require.NoError(t, err)

	require.NoError(t, f.svc.ConfirmArrival(ctx, "a1"))
	spot, _ := f.spots.FindByID(ctx, "a1")
	assert.Equal(t, domain.SpotOccupied, spot.Status)
	assert.Equal(t, "user-1", spot.ReservedBy.String, "holder được giữ nguyên sau khi xe vào")

	// Gọi lại khi đã occupied không phải lỗi.
	require.NoError(t, f.svc.ConfirmArrival(ctx, "a1"))
}
