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
	"gopkg.in/guregu/null.v4"
)

func seedSpot(t *testing.T, r *SpotRepo, spotID string) {
	t.Helper()
	_, err := r.Create(context.Background(), &domain.ParkingSpot{
		SpotID: spotID,
		Status: domain.SpotFree,
	})
	require.NoError(t, err)
}

func TestSpotRepoCreate(t *testing.T) {
	r := NewSpotRepo()
	seedSpot(t, r, "a1")

	_, err := r.Create(context.Background(), &domain.ParkingSpot{SpotID: "a1"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)
}

func TestConditionalTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("matching status applies the mutation", func(t *testing.T) {
		r := NewSpotRepo()
		seedSpot(t, r, "a1")

		end := time.Now().Add(time.Hour)
		spot, err := r.ConditionalTransition(ctx, "a1", domain.SpotFree, domain.SpotMutation{
			Status:         domain.SpotReserved,
			ReservedBy:     null.StringFrom("user-1"),
			ReservationEnd: null.TimeFrom(end),
			Source:         "reservation",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.SpotReserved, spot.Status)
		assert.Equal(t, "user-1", spot.ReservedBy.String)
		assert.Equal(t, "reservation", spot.LastStatusUpdateSource)
	})

	t.Run("wrong expected status is a conflict", func(t *testing.T) {
		r := NewSpotRepo()
		seedSpot(t, r, "a1")

		_, err := r.ConditionalTransition(ctx, "a1", domain.SpotOccupied, domain.SpotMutation{Status: domain.SpotFree})
		assert.ErrorIs(t, err, repository.ErrConflict)

		// Chỗ không bị đụng tới sau một chuyển tiếp thất bại.
		spot, _ := r.FindByID(ctx, "a1")
		assert.Equal(t, domain.SpotFree, spot.Status)
	})

	t.Run("unknown spot is not found", func(t *testing.T) {
		r := NewSpotRepo()
		_, err := r.ConditionalTransition(ctx, "z9", domain.SpotFree, domain.SpotMutation{Status: domain.SpotOccupied})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("holder fields are overwritten as a whole", func(t *testing.T) {
		r := NewSpotRepo()
		seedSpot(t, r, "a1")

		_, err := r.ConditionalTransition(ctx, "a1", domain.SpotFree, domain.SpotMutation{
			Status:     domain.SpotReserved,
			ReservedBy: null.StringFrom("user-1"),
		})
		require.NoError(t, err)

		spot, err := r.ConditionalTransition(ctx, "a1", domain.SpotReserved, domain.SpotMutation{
			Status: domain.SpotFree,
			Source: "expiry_sweep",
		})
		require.NoError(t, err)
		assert.False(t, spot.ReservedBy.Valid, "holder bị xóa khi mutation không mang holder")
	})

	t.Run("force signal only changes when set", func(t *testing.T) {
		r := NewSpotRepo()
		seedSpot(t, r, "a1")

		spot, err := r.ConditionalTransition(ctx, "a1", domain.SpotFree, domain.SpotMutation{
			Status:      domain.SpotOccupied,
			ForceSignal: null.IntFrom(42),
			Source:      "sensor",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(42), spot.ForceSignal.Int64)

		spot, err = r.ConditionalTransition(ctx, "a1", domain.SpotOccupied, domain.SpotMutation{
			Status: domain.SpotFree,
			Source: "sensor",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(42), spot.ForceSignal.Int64, "force signal được giữ khi mutation không set")
	})
}

func TestConditionalTransitionConcurrent(t *testing.T) {
	r := NewSpotRepo()
	seedSpot(t, r, "a1")

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.ConditionalTransition(context.Background(), "a1", domain.SpotFree, domain.SpotMutation{
				Status: domain.SpotReserved,
				Source: "reservation",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, repository.ErrConflict)
		}
	}
	assert.Equal(t, 1, wins, "đúng một chuyển tiếp free->reserved thắng")
}

func TestFindExpiredReservations(t *testing.T) {
	ctx := context.Background()
	r := NewSpotRepo()
	seedSpot(t, r, "a1")
	seedSpot(t, r, "a2")
	seedSpot(t, r, "a3")

	now := time.Now().UTC()
	_, err := r.ConditionalTransition(ctx, "a1", domain.SpotFree, domain.SpotMutation{
		Status:         domain.SpotReserved,
		ReservationEnd: null.TimeFrom(now.Add(-time.Minute)),
	})
	require.NoError(t, err)
	_, err = r.ConditionalTransition(ctx, "a2", domain.SpotFree, domain.SpotMutation{
		Status:         domain.SpotReserved,
		ReservationEnd: null.TimeFrom(now.Add(time.Hour)),
	})
	require.NoError(t, err)
	// a3 occupied quá hạn: không thuộc diện quét.
	_, err = r.ConditionalTransition(ctx, "a3", domain.SpotFree, domain.SpotMutation{
		Status:         domain.SpotOccupied,
		ReservationEnd: null.TimeFrom(now.Add(-time.Minute)),
	})
	require.NoError(t, err)

	expired, err := r.FindExpiredReservations(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "a1", expired[0].SpotID)
}

func TestSpotRepoDelete(t *testing.T) {
	r := NewSpotRepo()
	seedSpot(t, r, "a1")

	assert.NoError(t, r.Delete(context.Background(), "a1"))
	assert.ErrorIs(t, r.Delete(context.Background(), "a1"), repository.ErrNotFound)
	_, err := r.FindByID(context.Background(), "a1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
