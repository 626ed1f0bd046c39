package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedReservation(t *testing.T, r *ReservationRepo, id, userID string) *domain.Reservation {
	t.Helper()
	now := time.Now().UTC()
	res, err := r.Create(context.Background(), &domain.Reservation{
		ID:              id,
		SpotID:          "a1",
		UserID:          userID,
		StartTime:       now,
		EndTime:         now.Add(time.Hour),
		DurationMinutes: 60,
		Status:          domain.ReservationActive,
	})
	require.NoError(t, err)
	return res
}

func TestCloseIfActive(t *testing.T) {
	ctx := context.Background()

	t.Run("active reservation closes once", func(t *testing.T) {
		r := NewReservationRepo()
		seedReservation(t, r, "RES-1", "user-1")

		endedAt := time.Now().UTC()
		closed, err := r.CloseIfActive(ctx, "RES-1", domain.ReservationCompleted, endedAt, "user_release")
		require.NoError(t, err)
		assert.Equal(t, domain.ReservationCompleted, closed.Status)
		assert.Equal(t, "user_release", closed.EndReason.String)

		_, err = r.CloseIfActive(ctx, "RES-1", domain.ReservationExpired, endedAt, "expired")
		assert.ErrorIs(t, err, repository.ErrConflict)

		// Lần đóng thứ hai không ghi đè trạng thái.
		res, _ := r.FindByID(ctx, "RES-1")
		assert.Equal(t, domain.ReservationCompleted, res.Status)
	})

	t.Run("unknown reservation", func(t *testing.T) {
		r := NewReservationRepo()
		_, err := r.CloseIfActive(ctx, "RES-404", domain.ReservationCompleted, time.Now(), "")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("concurrent close has one winner", func(t *testing.T) {
		r := NewReservationRepo()
		seedReservation(t, r, "RES-1", "user-1")

		const workers = 16
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := r.CloseIfActive(context.Background(), "RES-1", domain.ReservationCompleted, time.Now(), "race")
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		wins := 0
		for err := range errs {
			if err == nil {
				wins++
			}
		}
		assert.Equal(t, 1, wins)
	})
}

func TestExtendIfActive(t *testing.T) {
	ctx := context.Background()
	r := NewReservationRepo()
	res := seedReservation(t, r, "RES-1", "user-1")

	newEnd := res.EndTime.Add(30 * time.Minute)
	extended, err := r.ExtendIfActive(ctx, "RES-1", newEnd, 90)
	require.NoError(t, err)
	assert.Equal(t, newEnd, extended.EndTime)
	assert.Equal(t, 90, extended.DurationMinutes)

	_, err = r.CloseIfActive(ctx, "RES-1", domain.ReservationCompleted, time.Now(), "")
	require.NoError(t, err)
	_, err = r.ExtendIfActive(ctx, "RES-1", newEnd.Add(time.Hour), 120)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestFindActive(t *testing.T) {
	ctx := context.Background()
	r := NewReservationRepo()
	seedReservation(t, r, "RES-1", "user-1")

	res, err := r.FindActiveByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "RES-1", res.ID)

	res, err = r.FindActiveBySpotID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "RES-1", res.ID)

	_, err = r.CloseIfActive(ctx, "RES-1", domain.ReservationCompleted, time.Now(), "")
	require.NoError(t, err)

	_, err = r.FindActiveByUserID(ctx, "user-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = r.FindActiveBySpotID(ctx, "a1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
