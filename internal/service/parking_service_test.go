package service

import (
	"context"
	"testing"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"
)

func boolPtr(b bool) *bool { return &b }

func newParkingSvc(spots *memory.SpotRepo) *ParkingService {
	audit := NewAuditService(memory.NewAuditLogRepo())
	codes := NewAccessCodeService(memory.NewAccessCodeRepo(), audit, nil)
	return NewParkingService(spots, memory.NewReservationRepo(), codes, nil)
}

func TestSeedSpots(t *testing.T) {
	ctx := context.Background()
	spots := memory.NewSpotRepo()
	svc := newParkingSvc(spots)

	require.NoError(t, svc.SeedSpots(ctx, 3))
	status, err := svc.GetStatus(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 3, status.TotalSpots)
	assert.Equal(t, 3, status.Free)
	require.Len(t, status.Spots, 3)
	assert.Equal(t, "a1", status.Spots[0].SpotID)

	// Seed lại không tạo trùng và không đụng trạng thái hiện có.
	_, err = spots.ConditionalTransition(ctx, "a2", domain.SpotFree, domain.SpotMutation{
		Status: domain.SpotOccupied,
		Source: "sensor",
	})
	require.NoError(t, err)
	require.NoError(t, svc.SeedSpots(ctx, 3))
	spot, _ := spots.FindByID(ctx, "a2")
	assert.Equal(t, domain.SpotOccupied, spot.Status)
}

func TestHandleSensorUpdate(t *testing.T) {
	ctx := context.Background()

	newSvc := func(t *testing.T) (*ParkingService, *memory.SpotRepo) {
		spots := memory.NewSpotRepo()
		svc := newParkingSvc(spots)
		require.NoError(t, svc.SeedSpots(ctx, 2))
		return svc, spots
	}

	t.Run("walk-in occupies a free spot without holder", func(t *testing.T) {
		svc, spots := newSvc(t)
		resp, err := svc.HandleSensorUpdate(ctx, domain.SensorUpdateRequest{SpotID: "a1", Occupied: boolPtr(true)})
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, domain.SpotFree, resp.OldStatus)
		assert.Equal(t, domain.SpotOccupied, resp.NewStatus)

		spot, _ := spots.FindByID(ctx, "a1")
		assert.False(t, spot.ReservedBy.Valid)
		assert.Equal(t, "sensor", spot.LastStatusUpdateSource)
	})

	t.Run("vacating an occupied spot frees it", func(t *testing.T) {
		svc, spots := newSvc(t)
		_, err := svc.HandleSensorUpdate(ctx, domain.SensorUpdateRequest{SpotID: "a1", Occupied: boolPtr(true)})
		require.NoError(t, err)
		resp, err := svc.HandleSensorUpdate(ctx, domain.SensorUpdateRequest{SpotID: "a1", Occupied: boolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, domain.SpotFree, resp.NewStatus)

		spot, _ := spots.FindByID(ctx, "a1")
		assert.Equal(t, domain.SpotFree, spot.Status)
	})

	t.Run("reserved spot keeps its holder when the car arrives", func(t *testing.T) {
		svc, spots := newSvc(t)
		now := time.Now().UTC()
		_, err := spots.ConditionalTransition(ctx, "a1", domain.SpotFree, domain.SpotMutation{
			Status:           domain.SpotReserved,
			ReservedBy:       null.StringFrom("user-1"),
			ReservedByEmail:  null.StringFrom("an@example.com"),
			ReservationStart: null.TimeFrom(now),
			ReservationEnd:   null.TimeFrom(now.Add(time.Hour)),
			Source:           "reservation",
		})
		require.NoError(t, err)

		resp, err := svc.HandleSensorUpdate(ctx, domain.SensorUpdateRequest{SpotID: "a1", Occupied: boolPtr(true)})
		require.NoError(t, err)
		assert.Equal(t, domain.SpotOccupied, resp.NewStatus)

		spot, _ := spots.FindByID(ctx, "a1")
		assert.Equal(t, "user-1", spot.ReservedBy.String)
		assert.True(t, spot.ReservationEnd.Valid)
	})

	t.Run("reserved spot reporting empty is a no-op", func(t *testing.T) {
		svc, spots := newSvc(t)
		_, err := spots.ConditionalTransition(ctx, "a1", domain.SpotFree, domain.SpotMutation{
			Status:     domain.SpotReserved,
			ReservedBy: null.StringFrom("user-1"),
			Source:     "reservation",
		})
		require.NoError(t, err)

		resp, err := svc.HandleSensorUpdate(ctx, domain.SensorUpdateRequest{SpotID: "a1", Occupied: boolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, domain.SpotReserved, resp.NewStatus)

		spot, _ := spots.FindByID(ctx, "a1")
		assert.Equal(t, domain.SpotReserved, spot.Status)
	})

	t.Run("repeated report with same state is a no-op", func(t *testing.T) {
		svc, _ := newSvc(t)
		_, err := svc.HandleSensorUpdate(ctx, domain.SensorUpdateRequest{SpotID: "a1", Occupied: boolPtr(true)})
		require.NoError(t, err)
		resp, err := svc.HandleSensorUpdate(ctx, domain.SensorUpdateRequest{SpotID: "a1", Occupied: boolPtr(true)})
		require.NoError(t, err)
		assert.Equal(t, resp.OldStatus, resp.NewStatus)
	})

	t.Run("unknown spot", func(t *testing.T) {
		svc, _ := newSvc(t)
		_, err := svc.HandleSensorUpdate(ctx, domain.SensorUpdateRequest{SpotID: "z9", Occupied: boolPtr(true)})
		assert.Error(t, err)
	})
}

func TestDeleteSpot(t *testing.T) {
	ctx := context.Background()
	spots := memory.NewSpotRepo()
	svc := newParkingSvc(spots)
	require.NoError(t, svc.SeedSpots(ctx, 2))

	_, err := svc.HandleSensorUpdate(ctx, domain.SensorUpdateRequest{SpotID: "a1", Occupied: boolPtr(true)})
	require.NoError(t, err)

	assert.Error(t, svc.DeleteSpot(ctx, "a1"), "chỗ đang có xe không được xóa")
	assert.NoError(t, svc.DeleteSpot(ctx, "a2"))

	status, err := svc.GetStatus(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalSpots)
}
