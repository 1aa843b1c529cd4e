package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/campus-support/internal/config"
	"github.com/spec-kit/campus-support/internal/domain"
	apperrors "github.com/spec-kit/campus-support/pkg/util"
)

func TestCreateTicket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("defaults and key", func(t *testing.T) {
		ticket := env.newTicket(t, nil)
		assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
		assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
		assert.True(t, strings.HasPrefix(ticket.ExternalKey, "TCK-"))
		assert.Nil(t, ticket.DepartmentID)
	})

	t.Run("support cannot create", func(t *testing.T) {
		_, err := env.lifecycle.Create(ctx, env.support, TicketCreateInput{
			Title: "x", Description: "y",
		})
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("blank title rejected", func(t *testing.T) {
		_, err := env.lifecycle.Create(ctx, env.student, TicketCreateInput{
			Title: "  ", Description: "y",
		})
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("unknown department rejected", func(t *testing.T) {
		missing := "00000000-0000-0000-0000-000000000000"
		_, err := env.lifecycle.Create(ctx, env.student, TicketCreateInput{
			Title: "x", Description: "y", DepartmentID: &missing,
		})
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	})

	t.Run("invalid priority rejected", func(t *testing.T) {
		_, err := env.lifecycle.Create(ctx, env.student, TicketCreateInput{
			Title: "x", Description: "y", Priority: "critical",
		})
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})
}

func TestViewScoping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.newTicket(t, &env.deptA.ID)

	t.Run("creator sees own ticket", func(t *testing.T) {
		got, err := env.lifecycle.Get(ctx, env.student, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, ticket.ID, got.ID)
	})

	t.Run("other student denied", func(t *testing.T) {
		_, err := env.lifecycle.Get(ctx, env.student2, ticket.ID)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("support of same department sees it", func(t *testing.T) {
		_, err := env.lifecycle.Get(ctx, env.support, ticket.ID)
		assert.NoError(t, err)
	})

	t.Run("support of other department denied", func(t *testing.T) {
		_, err := env.lifecycle.Get(ctx, env.supportB, ticket.ID)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("list scopes student to own tickets", func(t *testing.T) {
		tickets, err := env.lifecycle.List(ctx, env.student2, listFilter())
		require.NoError(t, err)
		assert.Empty(t, tickets)

		tickets, err = env.lifecycle.List(ctx, env.student, listFilter())
		require.NoError(t, err)
		require.Len(t, tickets, 1)
	})

	t.Run("list scopes staff to department", func(t *testing.T) {
		tickets, err := env.lifecycle.List(ctx, env.supportB, listFilter())
		require.NoError(t, err)
		assert.Empty(t, tickets)

		tickets, err = env.lifecycle.List(ctx, env.head, listFilter())
		require.NoError(t, err)
		assert.Len(t, tickets, 1)
	})
}

func TestTransitionGraph(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("single forward steps", func(t *testing.T) {
		ticket := env.routedAssigned(t)

		moved, err := env.lifecycle.Transition(ctx, env.support, ticket.ID, domain.TicketStatusInProgress, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusInProgress, moved.Status)
		assert.NotNil(t, moved.FirstResponseAt)

		moved, err = env.lifecycle.Transition(ctx, env.support, ticket.ID, domain.TicketStatusResolved, nil)
		require.NoError(t, err)
		assert.NotNil(t, moved.ResolvedAt)

		moved, err = env.lifecycle.Transition(ctx, env.support, ticket.ID, domain.TicketStatusClosed, nil)
		require.NoError(t, err)
		assert.NotNil(t, moved.ClosedAt)
	})

	t.Run("skipping a step fails", func(t *testing.T) {
		ticket := env.routedAssigned(t)
		_, err := env.lifecycle.Transition(ctx, env.support, ticket.ID, domain.TicketStatusResolved, nil)
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("backward move fails", func(t *testing.T) {
		ticket := env.routedAssigned(t)
		_, err := env.lifecycle.Transition(ctx, env.support, ticket.ID, domain.TicketStatusInProgress, nil)
		require.NoError(t, err)
		_, err = env.lifecycle.Transition(ctx, env.support, ticket.ID, domain.TicketStatusOpen, nil)
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("stale expected status conflicts", func(t *testing.T) {
		ticket := env.routedAssigned(t)
		_, err := env.lifecycle.Transition(ctx, env.support, ticket.ID, domain.TicketStatusInProgress, nil)
		require.NoError(t, err)

		stale := domain.TicketStatusOpen
		_, err = env.lifecycle.Transition(ctx, env.support, ticket.ID, domain.TicketStatusResolved, &stale)
		assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	})

	t.Run("unassigned support cannot transition", func(t *testing.T) {
		ticket := env.newTicket(t, &env.deptA.ID)
		_, err := env.lifecycle.Transition(ctx, env.support, ticket.ID, domain.TicketStatusInProgress, nil)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("student cannot transition own ticket", func(t *testing.T) {
		ticket := env.newTicket(t, &env.deptA.ID)
		_, err := env.lifecycle.Transition(ctx, env.student, ticket.ID, domain.TicketStatusInProgress, nil)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("department head transitions within department", func(t *testing.T) {
		ticket := env.newTicket(t, &env.deptA.ID)
		_, err := env.lifecycle.Transition(ctx, env.head, ticket.ID, domain.TicketStatusInProgress, nil)
		assert.NoError(t, err)
	})

	t.Run("transition writes audit", func(t *testing.T) {
		ticket := env.routedAssigned(t)
		_, err := env.lifecycle.Transition(ctx, env.support, ticket.ID, domain.TicketStatusInProgress, nil)
		require.NoError(t, err)

		entries, err := env.lifecycle.AuditTrail(ctx, env.admin, ticket.ID, 10, 0)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.Equal(t, domain.AuditChangeStatus, entries[0].ChangeType)
	})
}

func TestEditRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("creator edits open ticket", func(t *testing.T) {
		ticket := env.newTicket(t, nil)
		title := "Updated title"
		edited, err := env.lifecycle.Edit(ctx, env.student, ticket.ID, TicketEditInput{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, title, edited.Title)
	})

	t.Run("other student denied", func(t *testing.T) {
		ticket := env.newTicket(t, nil)
		title := "hijack"
		_, err := env.lifecycle.Edit(ctx, env.student2, ticket.ID, TicketEditInput{Title: &title})
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("non-open ticket locked", func(t *testing.T) {
		ticket := env.routedAssigned(t)
		_, err := env.lifecycle.Transition(ctx, env.support, ticket.ID, domain.TicketStatusInProgress, nil)
		require.NoError(t, err)

		title := "too late"
		_, err = env.lifecycle.Edit(ctx, env.student, ticket.ID, TicketEditInput{Title: &title})
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("student priority locked after assignment by default", func(t *testing.T) {
		ticket := env.routedAssigned(t)
		high := domain.TicketPriorityHigh
		_, err := env.lifecycle.Edit(ctx, env.student, ticket.ID, TicketEditInput{Priority: &high})
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("policy unlocks student priority edit", func(t *testing.T) {
		relaxed := newTestEnvWithPolicy(t, config.PolicyConfig{AllowReopen: true, StudentPriorityPostEdit: true})
		ticket := relaxed.routedAssigned(t)
		high := domain.TicketPriorityHigh
		edited, err := relaxed.lifecycle.Edit(ctx, relaxed.student, ticket.ID, TicketEditInput{Priority: &high})
		require.NoError(t, err)
		assert.Equal(t, high, edited.Priority)
	})
}

func TestAssign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("assignment requires matching department", func(t *testing.T) {
		ticket := env.newTicket(t, &env.deptA.ID)
		_, err := env.lifecycle.Assign(ctx, env.admin, ticket.ID, AssignInput{SupportUserID: &env.supportB.ID})
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("assignment sets timestamp", func(t *testing.T) {
		ticket := env.newTicket(t, &env.deptA.ID)
		assigned, err := env.lifecycle.Assign(ctx, env.admin, ticket.ID, AssignInput{SupportUserID: &env.support.ID})
		require.NoError(t, err)
		require.NotNil(t, assigned.AssignedSupport)
		assert.Equal(t, env.support.ID, *assigned.AssignedSupport)
		assert.NotNil(t, assigned.AssignedAt)
	})

	t.Run("rerouting clears assignee", func(t *testing.T) {
		ticket := env.routedAssigned(t)
		moved, err := env.lifecycle.Assign(ctx, env.admin, ticket.ID, AssignInput{DepartmentID: &env.deptB.ID})
		require.NoError(t, err)
		assert.Nil(t, moved.AssignedSupport)
		assert.Nil(t, moved.AssignedAt)
		require.NotNil(t, moved.DepartmentID)
		assert.Equal(t, env.deptB.ID, *moved.DepartmentID)
	})

	t.Run("assigning unrouted ticket fails", func(t *testing.T) {
		ticket := env.newTicket(t, nil)
		_, err := env.lifecycle.Assign(ctx, env.admin, ticket.ID, AssignInput{SupportUserID: &env.support.ID})
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("head assigns within own department only", func(t *testing.T) {
		ticket := env.newTicket(t, &env.deptA.ID)
		_, err := env.lifecycle.Assign(ctx, env.head, ticket.ID, AssignInput{SupportUserID: &env.support.ID})
		assert.NoError(t, err)

		other := env.newTicket(t, &env.deptB.ID)
		_, err = env.lifecycle.Assign(ctx, env.head, other.ID, AssignInput{SupportUserID: &env.supportB.ID})
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("student cannot assign", func(t *testing.T) {
		ticket := env.newTicket(t, &env.deptA.ID)
		_, err := env.lifecycle.Assign(ctx, env.student, ticket.ID, AssignInput{SupportUserID: &env.support.ID})
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("non support assignee rejected", func(t *testing.T) {
		ticket := env.newTicket(t, &env.deptA.ID)
		_, err := env.lifecycle.Assign(ctx, env.admin, ticket.ID, AssignInput{SupportUserID: &env.head.ID})
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})
}

func TestReopenAndOverride(t *testing.T) {
	ctx := context.Background()

	resolvedTicket := func(t *testing.T, env *testEnv) *domain.Ticket {
		ticket := env.routedAssigned(t)
		_, err := env.lifecycle.Transition(ctx, env.support, ticket.ID, domain.TicketStatusInProgress, nil)
		require.NoError(t, err)
		resolved, err := env.lifecycle.Transition(ctx, env.support, ticket.ID, domain.TicketStatusResolved, nil)
		require.NoError(t, err)
		return resolved
	}

	t.Run("reopen clears resolution timestamps", func(t *testing.T) {
		env := newTestEnv(t)
		ticket := resolvedTicket(t, env)
		reopened, err := env.lifecycle.Reopen(ctx, env.head, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusInProgress, reopened.Status)
		assert.Nil(t, reopened.ResolvedAt)
		assert.Nil(t, reopened.ClosedAt)
	})

	t.Run("reopen disabled by policy", func(t *testing.T) {
		env := newTestEnvWithPolicy(t, config.PolicyConfig{AllowReopen: false})
		ticket := resolvedTicket(t, env)
		_, err := env.lifecycle.Reopen(ctx, env.head, ticket.ID)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("reopen rejects active ticket", func(t *testing.T) {
		env := newTestEnv(t)
		ticket := env.newTicket(t, &env.deptA.ID)
		_, err := env.lifecycle.Reopen(ctx, env.head, ticket.ID)
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("override close from open", func(t *testing.T) {
		env := newTestEnv(t)
		ticket := env.newTicket(t, nil)
		closed, err := env.lifecycle.OverrideClose(ctx, env.admin, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusClosed, closed.Status)
		assert.NotNil(t, closed.ClosedAt)
	})

	t.Run("override is admin only", func(t *testing.T) {
		env := newTestEnv(t)
		ticket := env.newTicket(t, &env.deptA.ID)
		_, err := env.lifecycle.OverrideClose(ctx, env.head, ticket.ID)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("override on closed ticket conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		ticket := env.newTicket(t, nil)
		_, err := env.lifecycle.OverrideClose(ctx, env.admin, ticket.ID)
		require.NoError(t, err)
		_, err = env.lifecycle.OverrideClose(ctx, env.admin, ticket.ID)
		assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	})
}

func TestDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.newTicket(t, &env.deptA.ID)

	_, err := env.comments.Append(ctx, env.student, ticket.ID, "please hurry")
	require.NoError(t, err)

	t.Run("admin only", func(t *testing.T) {
		err := env.lifecycle.Delete(ctx, env.head, ticket.ID)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("removes ticket and thread", func(t *testing.T) {
		require.NoError(t, env.lifecycle.Delete(ctx, env.admin, ticket.ID))

		_, err := env.lifecycle.Get(ctx, env.admin, ticket.ID)
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

		comments, err := env.store.Comments().ListByTicket(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Empty(t, comments)
	})
}
