package service

import (
	"context"
	"strings"
	"testing"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharge(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewPaymentRepo()
	svc := NewPaymentService(repo, NewAuditService(memory.NewAuditLogRepo()))

	t.Run("approved by default", func(t *testing.T) {
		payment, err := svc.Charge(ctx, PaymentRequest{
			UserID:          "user-1",
			UserEmail:       "an@example.com",
			SpotID:          "a1",
			DurationMinutes: 90,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentApproved, payment.Status)
		assert.True(t, strings.HasPrefix(payment.PaymentID, "PAY-"))
		assert.True(t, strings.HasPrefix(payment.TransactionRef, "TXN-"))
		assert.InDelta(t, 7.50, payment.Amount, 0.001)
		assert.Equal(t, "USD", payment.Currency)

		stored, err := svc.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		assert.Equal(t, payment.TransactionRef, stored.TransactionRef)
	})

	t.Run("declined when requested, still recorded", func(t *testing.T) {
		payment, err := svc.Charge(ctx, PaymentRequest{
			UserID:          "user-2",
			SpotID:          "a1",
			DurationMinutes: 60,
			SimulateFailure: true,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentDeclined, payment.Status)
		assert.NotEmpty(t, payment.FailureReason)

		history, err := svc.GetUserPayments(ctx, "user-2", 10)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, domain.PaymentDeclined, history[0].Status)
	})
}
