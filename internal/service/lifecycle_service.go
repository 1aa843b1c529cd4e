package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/config"
	"github.com/spec-kit/campus-support/internal/domain"
	"github.com/spec-kit/campus-support/internal/events"
	"github.com/spec-kit/campus-support/internal/repository"
	apperrors "github.com/spec-kit/campus-support/pkg/util"
)

// LifecycleService is the single guard for every ticket mutation: it
// enforces the status transition graph, the permission table, and the
// assignment invariants, and records an audit entry per change. Both the
// human-facing handlers and the agent orchestrator funnel through it.
type LifecycleService struct {
	tickets     repository.TicketRepository
	users       repository.UserRepository
	departments repository.DepartmentRepository
	comments    repository.CommentRepository
	audit       repository.AuditRepository
	dispatcher  events.Dispatcher
	policy      config.PolicyConfig
	locks       *ticketLocks
	logger      *zap.Logger
}

// LifecycleDependencies bundles the store interfaces for the engine.
type LifecycleDependencies struct {
	TicketRepo     repository.TicketRepository
	UserRepo       repository.UserRepository
	DepartmentRepo repository.DepartmentRepository
	CommentRepo    repository.CommentRepository
	AuditRepo      repository.AuditRepository
	Dispatcher     events.Dispatcher
	Policy         config.PolicyConfig
	Logger         *zap.Logger
}

// NewLifecycleService constructs the engine.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		departments: deps.DepartmentRepo,
		comments:    deps.CommentRepo,
		audit:       deps.AuditRepo,
		dispatcher:  deps.Dispatcher,
		policy:      deps.Policy,
		locks:       newTicketLocks(),
		logger:      logger,
	}
}

// transitions is the forward-only status graph; one step at a time. The
// admin override and the reopen operation are separate privileged paths,
// not entries here.
var transitions = map[domain.TicketStatus]domain.TicketStatus{
	domain.TicketStatusOpen:       domain.TicketStatusInProgress,
	domain.TicketStatusInProgress: domain.TicketStatusResolved,
	domain.TicketStatusResolved:   domain.TicketStatusClosed,
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title        string
	Description  string
	Category     string
	Priority     domain.TicketPriority
	DepartmentID *string
}

// TicketEditInput carries the fields students may change while a ticket
// is open. Nil fields are left untouched.
type TicketEditInput struct {
	Title       *string
	Description *string
	Priority    *domain.TicketPriority
}

// AssignInput routes a ticket to a department and/or a support user.
type AssignInput struct {
	DepartmentID  *string
	SupportUserID *string
}

// Create opens a new ticket. Support users do not file tickets.
func (s *LifecycleService) Create(ctx context.Context, actor domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if actor.Role == domain.RoleSupport {
		return nil, apperrors.NewForbidden("support users cannot create tickets")
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": input.Priority})
	}
	if input.DepartmentID != nil {
		if _, err := s.departments.GetByID(ctx, *input.DepartmentID); err != nil {
			return nil, s.notFoundOr(err, "department")
		}
	}

	ticket := &domain.Ticket{
		ExternalKey:  generateTicketKey(),
		CreatorID:    actor.ID,
		DepartmentID: input.DepartmentID,
		Title:        title,
		Description:  description,
		Category:     strings.TrimSpace(input.Category),
		Status:       domain.TicketStatusOpen,
		Priority:     priority,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
		Payload: events.TicketCreatedPayload{
			DepartmentID: ticket.DepartmentID,
			Priority:     ticket.Priority,
			Title:        ticket.Title,
		},
	})
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("actor_id", actor.ID))
	return ticket, nil
}

// Get loads a ticket enforcing view permission.
func (s *LifecycleService) Get(ctx context.Context, actor domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.notFoundOr(err, "ticket")
	}
	if err := authorize(OpView, &actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// List returns tickets scoped by the actor's role.
func (s *LifecycleService) List(ctx context.Context, actor domain.User, filter repository.TicketFilter) ([]domain.Ticket, error) {
	switch actor.Role {
	case domain.RoleStudent:
		filter.CreatorID = &actor.ID
		filter.DepartmentID = nil
		filter.AssigneeID = nil
	case domain.RoleSupport, domain.RoleDepartment:
		if actor.DepartmentID == nil {
			return nil, apperrors.NewForbidden("no department membership")
		}
		filter.DepartmentID = actor.DepartmentID
	case domain.RoleAdmin:
		// unrestricted
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Edit updates title/description/priority while the ticket is open.
func (s *LifecycleService) Edit(ctx context.Context, actor domain.User, ticketID string, input TicketEditInput) (*domain.Ticket, error) {
	release := s.locks.acquire(ticketID)
	defer release()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.notFoundOr(err, "ticket")
	}
	if err := authorize(OpEdit, &actor, ticket); err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusOpen {
		return nil, apperrors.NewForbidden("only open tickets can be edited")
	}

	old := map[string]any{}
	updated := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title cannot be empty", nil)
		}
		old["title"] = ticket.Title
		ticket.Title = title
		updated["title"] = title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, apperrors.NewValidationError("description cannot be empty", nil)
		}
		old["description"] = ticket.Description
		ticket.Description = description
		updated["description"] = description
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
		}
		if actor.Role == domain.RoleStudent && ticket.AssignedSupport != nil && !s.policy.StudentPriorityPostEdit {
			return nil, apperrors.NewForbidden("priority locked after assignment")
		}
		old["priority"] = ticket.Priority
		ticket.Priority = *input.Priority
		updated["priority"] = *input.Priority
	}
	if len(updated) == 0 {
		return ticket, nil
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordAudit(ctx, actor, ticket.ID, domain.AuditChangeEdit, old, updated)
	return ticket, nil
}

// Transition advances the ticket one step along the status graph. When
// expectedCurrent is supplied the operation fails with Conflict if the
// stored status has moved on since the caller read it.
func (s *LifecycleService) Transition(ctx context.Context, actor domain.User, ticketID string, target domain.TicketStatus, expectedCurrent *domain.TicketStatus) (*domain.Ticket, error) {
	if !target.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": target})
	}

	release := s.locks.acquire(ticketID)
	defer release()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.notFoundOr(err, "ticket")
	}
	if err := authorize(OpTransition, &actor, ticket); err != nil {
		return nil, err
	}
	if expectedCurrent != nil && *expectedCurrent != ticket.Status {
		return nil, apperrors.NewConflict("ticket status changed concurrently", map[string]any{
			"expected": *expectedCurrent,
			"actual":   ticket.Status,
		})
	}
	if next, ok := transitions[ticket.Status]; !ok || next != target {
		return nil, apperrors.NewValidationError("illegal status transition", map[string]any{
			"from": ticket.Status,
			"to":   target,
		})
	}

	oldStatus := ticket.Status
	s.applyStatus(ticket, target)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordAudit(ctx, actor, ticket.ID, domain.AuditChangeStatus,
		map[string]any{"status": oldStatus},
		map[string]any{"status": target})
	s.publishStatusChange(ctx, actor, ticket, oldStatus)
	return ticket, nil
}

// OverrideClose is the admin-only privileged close from any non-closed
// status, bypassing the one-step rule but not the audit trail.
func (s *LifecycleService) OverrideClose(ctx context.Context, actor domain.User, ticketID string) (*domain.Ticket, error) {
	release := s.locks.acquire(ticketID)
	defer release()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.notFoundOr(err, "ticket")
	}
	if err := authorize(OpOverrideClose, &actor, ticket); err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("ticket already closed", nil)
	}

	oldStatus := ticket.Status
	s.applyStatus(ticket, domain.TicketStatusClosed)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordAudit(ctx, actor, ticket.ID, domain.AuditChangeOverride,
		map[string]any{"status": oldStatus},
		map[string]any{"status": ticket.Status})
	s.publishStatusChange(ctx, actor, ticket, oldStatus)
	return ticket, nil
}

// Reopen moves a resolved or closed ticket back to in_progress when the
// deployment policy allows it.
func (s *LifecycleService) Reopen(ctx context.Context, actor domain.User, ticketID string) (*domain.Ticket, error) {
	if !s.policy.AllowReopen {
		return nil, apperrors.NewForbidden("reopening is disabled")
	}

	release := s.locks.acquire(ticketID)
	defer release()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.notFoundOr(err, "ticket")
	}
	if err := authorize(OpReopen, &actor, ticket); err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusResolved && ticket.Status != domain.TicketStatusClosed {
		return nil, apperrors.NewValidationError("only resolved or closed tickets can be reopened", map[string]any{
			"status": ticket.Status,
		})
	}

	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusInProgress
	ticket.ResolvedAt = nil
	ticket.ClosedAt = nil
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordAudit(ctx, actor, ticket.ID, domain.AuditChangeReopen,
		map[string]any{"status": oldStatus},
		map[string]any{"status": ticket.Status})
	s.publishStatusChange(ctx, actor, ticket, oldStatus)
	return ticket, nil
}

// Assign routes a ticket to a department and/or assigns a support user.
// Assigning a support user requires the ticket to sit in that user's
// department.
func (s *LifecycleService) Assign(ctx context.Context, actor domain.User, ticketID string, input AssignInput) (*domain.Ticket, error) {
	if input.DepartmentID == nil && input.SupportUserID == nil {
		return nil, apperrors.NewValidationError("nothing to assign", nil)
	}

	release := s.locks.acquire(ticketID)
	defer release()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.notFoundOr(err, "ticket")
	}
	if err := authorize(OpAssign, &actor, ticket); err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusResolved || ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("ticket no longer accepts assignment", map[string]any{"status": ticket.Status})
	}

	previousAssignee := ticket.AssignedSupport

	if input.DepartmentID != nil {
		dept, err := s.departments.GetByID(ctx, *input.DepartmentID)
		if err != nil {
			return nil, s.notFoundOr(err, "department")
		}
		if ticket.DepartmentID == nil || *ticket.DepartmentID != dept.ID {
			old := map[string]any{"department_id": ticket.DepartmentID}
			ticket.DepartmentID = &dept.ID
			// moving departments invalidates the current assignee
			ticket.AssignedSupport = nil
			ticket.AssignedAt = nil
			s.recordAudit(ctx, actor, ticket.ID, domain.AuditChangeDepartment, old,
				map[string]any{"department_id": dept.ID})
		}
	}

	if input.SupportUserID != nil {
		support, err := s.users.GetByID(ctx, *input.SupportUserID)
		if err != nil {
			return nil, s.notFoundOr(err, "support user")
		}
		if support.Role != domain.RoleSupport {
			return nil, apperrors.NewValidationError("assignee is not a support user", map[string]any{"user_id": support.ID})
		}
		if ticket.DepartmentID == nil {
			return nil, apperrors.NewValidationError("route the ticket to a department before assigning", nil)
		}
		if support.DepartmentID == nil || *support.DepartmentID != *ticket.DepartmentID {
			return nil, apperrors.NewValidationError("support user belongs to a different department", map[string]any{
				"user_id": support.ID,
			})
		}
		now := time.Now()
		old := map[string]any{"assigned_support_id": previousAssignee}
		ticket.AssignedSupport = &support.ID
		ticket.AssignedAt = &now
		s.recordAudit(ctx, actor, ticket.ID, domain.AuditChangeAssignee, old,
			map[string]any{"assigned_support_id": support.ID})
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
		Payload: events.TicketAssignedPayload{
			DepartmentID:     ticket.DepartmentID,
			AssignedSupport:  ticket.AssignedSupport,
			PreviousAssignee: previousAssignee,
		},
	})
	return ticket, nil
}

// Reclassify stamps a classifier category and optionally retunes the
// priority, outside the student edit path. Transition permission gates
// it: whoever may advance a ticket may reclassify it.
func (s *LifecycleService) Reclassify(ctx context.Context, actor domain.User, ticketID, category string, priority *domain.TicketPriority) (*domain.Ticket, error) {
	if priority != nil && !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *priority})
	}

	release := s.locks.acquire(ticketID)
	defer release()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.notFoundOr(err, "ticket")
	}
	if err := authorize(OpTransition, &actor, ticket); err != nil {
		return nil, err
	}

	changed := false
	if category != "" && ticket.Category != category {
		old := ticket.Category
		ticket.Category = category
		s.recordAudit(ctx, actor, ticket.ID, domain.AuditChangeEdit,
			map[string]any{"category": old},
			map[string]any{"category": category})
		changed = true
	}
	if priority != nil && ticket.Priority != *priority {
		old := ticket.Priority
		ticket.Priority = *priority
		s.recordAudit(ctx, actor, ticket.ID, domain.AuditChangePriority,
			map[string]any{"priority": old},
			map[string]any{"priority": *priority})
		changed = true
	}
	if !changed {
		return ticket, nil
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// Delete removes a ticket and cascades its comments and audit trail.
func (s *LifecycleService) Delete(ctx context.Context, actor domain.User, ticketID string) error {
	release := s.locks.acquire(ticketID)
	defer release()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return s.notFoundOr(err, "ticket")
	}
	if err := authorize(OpDelete, &actor, ticket); err != nil {
		return err
	}

	if err := s.comments.DeleteByTicket(ctx, ticketID); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.audit.DeleteByTicket(ctx, ticketID); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticketID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
	})
	s.logger.Info("ticket deleted",
		zap.String("ticket_id", ticketID),
		zap.String("actor_id", actor.ID))
	return nil
}

// AuditTrail returns the mutation history, view-gated.
func (s *LifecycleService) AuditTrail(ctx context.Context, actor domain.User, ticketID string, limit, offset int) ([]domain.AuditEntry, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.notFoundOr(err, "ticket")
	}
	if err := authorize(OpView, &actor, ticket); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *LifecycleService) applyStatus(ticket *domain.Ticket, target domain.TicketStatus) {
	now := time.Now()
	ticket.Status = target
	switch target {
	case domain.TicketStatusInProgress:
		if ticket.FirstResponseAt == nil {
			ticket.FirstResponseAt = &now
		}
	case domain.TicketStatusResolved:
		if ticket.ResolvedAt == nil {
			ticket.ResolvedAt = &now
		}
	case domain.TicketStatusClosed:
		if ticket.ResolvedAt == nil {
			ticket.ResolvedAt = &now
		}
		ticket.ClosedAt = &now
	}
}

func (s *LifecycleService) publishStatusChange(ctx context.Context, actor domain.User, ticket *domain.Ticket, oldStatus domain.TicketStatus) {
	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
			Summary:   fmt.Sprintf("%s: %s -> %s", ticket.ExternalKey, oldStatus, ticket.Status),
		},
	})
	s.logger.Info("ticket status changed",
		zap.String("ticket_id", ticket.ID),
		zap.String("actor_id", actor.ID),
		zap.String("old", string(oldStatus)),
		zap.String("new", string(ticket.Status)))
}

func (s *LifecycleService) recordAudit(ctx context.Context, actor domain.User, ticketID string, change domain.AuditChangeType, oldValue, newValue map[string]any) {
	entry := &domain.AuditEntry{
		TicketID:   ticketID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		ChangeType: change,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *LifecycleService) notFoundOr(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return apperrors.MapError(err)
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
