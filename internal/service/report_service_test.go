package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/config"
	"github.com/spec-kit/campus-support/internal/domain"
	apperrors "github.com/spec-kit/campus-support/pkg/util"
)

func TestWeeklyReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	env.store.SetClock(func() time.Time { return base })

	env.newTicket(t, &env.deptA.ID)
	second := env.newTicket(t, &env.deptA.ID)
	resolved := env.newTicket(t, &env.deptA.ID)

	// resolve one ticket two hours after creation
	stored, err := env.store.Tickets().GetByID(ctx, resolved.ID)
	require.NoError(t, err)
	resolvedAt := base.Add(2 * time.Hour)
	firstResponse := base.Add(30 * time.Minute)
	stored.Status = domain.TicketStatusResolved
	stored.ResolvedAt = &resolvedAt
	stored.FirstResponseAt = &firstResponse
	require.NoError(t, env.store.Tickets().Update(ctx, stored))

	// raise one priority so the counts split
	high, err := env.store.Tickets().GetByID(ctx, second.ID)
	require.NoError(t, err)
	high.Priority = domain.TicketPriorityHigh
	require.NoError(t, env.store.Tickets().Update(ctx, high))

	reports := NewReportService(env.store.Tickets(), env.store.Departments(), nil, config.ReportConfig{CacheTTLMinutes: 10}, zap.NewNop())
	reports.now = func() time.Time { return base.Add(24 * time.Hour) }

	t.Run("aggregates window", func(t *testing.T) {
		report, err := reports.Weekly(ctx, env.admin, env.deptA.ID, nil)
		require.NoError(t, err)

		assert.Equal(t, 3, report.TotalTickets)
		assert.Equal(t, 2, report.StatusCounts[string(domain.TicketStatusOpen)])
		assert.Equal(t, 1, report.StatusCounts[string(domain.TicketStatusResolved)])
		assert.Equal(t, 2, report.PriorityCounts[string(domain.TicketPriorityMedium)])
		assert.Equal(t, 1, report.PriorityCounts[string(domain.TicketPriorityHigh)])
		assert.Equal(t, 1, report.ResolvedCount)
		assert.InDelta(t, 120, report.AvgResolutionMinutes, 0.01)
		assert.InDelta(t, 30, report.AvgFirstResponseMin, 0.01)
		assert.False(t, report.FromCache)
	})

	t.Run("tickets outside window excluded", func(t *testing.T) {
		env.store.SetClock(func() time.Time { return base.Add(-10 * 24 * time.Hour) })
		stale := env.newTicket(t, &env.deptA.ID)
		env.store.SetClock(func() time.Time { return base })

		report, err := reports.Weekly(ctx, env.admin, env.deptA.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, report.TotalTickets)

		_, err = env.store.Tickets().GetByID(ctx, stale.ID)
		require.NoError(t, err)
	})

	t.Run("as_of anchors the window", func(t *testing.T) {
		asOf := base.Add(-9 * 24 * time.Hour)
		report, err := reports.Weekly(ctx, env.admin, env.deptA.ID, &asOf)
		require.NoError(t, err)
		assert.Equal(t, 1, report.TotalTickets)
	})

	t.Run("other departments empty", func(t *testing.T) {
		report, err := reports.Weekly(ctx, env.admin, env.deptB.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, report.TotalTickets)
		assert.Equal(t, 0, report.ResolvedCount)
	})

	t.Run("department scoping", func(t *testing.T) {
		_, err := reports.Weekly(ctx, env.head, env.deptB.ID, nil)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

		_, err = reports.Weekly(ctx, env.head, env.deptA.ID, nil)
		assert.NoError(t, err)

		_, err = reports.Weekly(ctx, env.student, env.deptA.ID, nil)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("unknown department", func(t *testing.T) {
		_, err := reports.Weekly(ctx, env.admin, "missing", nil)
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	})
}
