package service

import (
	"context"
	"testing"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskCode(t *testing.T) {
	cases := map[string]string{
		"A7K": "A**",
		"ZZZ": "Z**",
		"B":   "B",
		"":    "",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskCode(in))
	}
}

func TestAuditRecordMasksCode(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAuditLogRepo()
	svc := NewAuditService(repo)

	svc.Record(ctx, AuditEntry{
		EventType: domain.AuditCodeUsed,
		Decision:  domain.AuditAllow,
		Reason:    string(domain.ReasonValidReservation),
		SpotID:    "a1",
		Code:      "A7K",
		BarrierID: domain.BarrierEntry,
	})

	logs, err := svc.Query(ctx, domain.AuditQuery{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "A**", logs[0].MaskedCode.String)
	assert.Equal(t, domain.AuditAllow, logs[0].Decision)
}

func TestAuditQueryFilters(t *testing.T) {
	ctx := context.Background()
	svc := NewAuditService(memory.NewAuditLogRepo())

	svc.Record(ctx, AuditEntry{EventType: domain.AuditEntryCheck, Decision: domain.AuditDeny, SpotID: "a1"})
	svc.Record(ctx, AuditEntry{EventType: domain.AuditEntryCheck, Decision: domain.AuditAllow, SpotID: "a2"})
	svc.Record(ctx, AuditEntry{EventType: domain.AuditExitCheck, Decision: domain.AuditAllow})

	logs, err := svc.Query(ctx, domain.AuditQuery{EventType: domain.AuditEntryCheck})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = svc.Query(ctx, domain.AuditQuery{Decision: domain.AuditAllow})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = svc.Query(ctx, domain.AuditQuery{SpotID: "a1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditDeny, logs[0].Decision)

	logs, err = svc.Query(ctx, domain.AuditQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
