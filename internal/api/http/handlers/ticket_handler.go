package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/campus-support/internal/api/dto"
	"github.com/spec-kit/campus-support/internal/auth"
	"github.com/spec-kit/campus-support/internal/domain"
	"github.com/spec-kit/campus-support/internal/repository"
	"github.com/spec-kit/campus-support/internal/service"
	apperrors "github.com/spec-kit/campus-support/pkg/util"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// TicketHandler serves the ticket lifecycle and its comment thread.
type TicketHandler struct {
	lifecycle *service.LifecycleService
	comments  *service.CommentService
}

// NewTicketHandler constructs the handler.
func NewTicketHandler(lifecycle *service.LifecycleService, comments *service.CommentService) *TicketHandler {
	return &TicketHandler{lifecycle: lifecycle, comments: comments}
}

// Create files a new ticket.
func (h *TicketHandler) Create(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	ticket, err := h.lifecycle.Create(c.UserContext(), actor, service.TicketCreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Priority:     domain.TicketPriority(req.Priority),
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromTicket(ticket))
}

// List returns tickets visible to the caller, filtered by query params.
func (h *TicketHandler) List(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}

	tickets, err := h.lifecycle.List(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tickets": dto.FromTickets(tickets), "count": len(tickets)})
}

// Get returns one ticket.
func (h *TicketHandler) Get(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Update edits title, description, or priority of an open ticket.
func (h *TicketHandler) Update(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	input := service.TicketEditInput{Title: req.Title, Description: req.Description}
	if req.Priority != nil {
		priority := domain.TicketPriority(*req.Priority)
		input.Priority = &priority
	}

	ticket, err := h.lifecycle.Edit(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Transition advances the ticket one status step.
func (h *TicketHandler) Transition(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	var expected *domain.TicketStatus
	if req.ExpectedCurrent != nil {
		status := domain.TicketStatus(*req.ExpectedCurrent)
		expected = &status
	}

	ticket, err := h.lifecycle.Transition(c.UserContext(), actor, c.Params("id"), domain.TicketStatus(req.Status), expected)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Assign routes a ticket and/or assigns a support user.
func (h *TicketHandler) Assign(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	ticket, err := h.lifecycle.Assign(c.UserContext(), actor, c.Params("id"), service.AssignInput{
		DepartmentID:  req.DepartmentID,
		SupportUserID: req.SupportUserID,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Reopen moves a resolved or closed ticket back to in_progress.
func (h *TicketHandler) Reopen(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.Reopen(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// OverrideClose closes the ticket from any non-closed status.
func (h *TicketHandler) OverrideClose(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.OverrideClose(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Delete removes the ticket and its thread.
func (h *TicketHandler) Delete(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.lifecycle.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddComment appends to the thread.
func (h *TicketHandler) AddComment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	comment, err := h.comments.Append(c.UserContext(), actor, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromComment(comment))
}

// ListComments returns the thread in order.
func (h *TicketHandler) ListComments(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	comments, err := h.comments.List(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"comments": dto.FromComments(comments)})
}

// AuditTrail returns the mutation history of a ticket.
func (h *TicketHandler) AuditTrail(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	limit := clampLimit(c.QueryInt("limit", defaultPageSize))
	offset := c.QueryInt("offset", 0)
	entries, err := h.lifecycle.AuditTrail(c.UserContext(), actor, c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"audit": dto.FromAuditEntries(entries)})
}

func requireActor(c *fiber.Ctx) (domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return domain.User{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

func parseTicketFilter(c *fiber.Ctx) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{
		Limit:  clampLimit(c.QueryInt("limit", defaultPageSize)),
		Offset: c.QueryInt("offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := domain.TicketStatus(strings.TrimSpace(part))
			if !status.Valid() {
				return filter, apperrors.NewValidationError("unknown status filter", map[string]any{"status": part})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if raw := c.Query("priority"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			priority := domain.TicketPriority(strings.TrimSpace(part))
			if !priority.Valid() {
				return filter, apperrors.NewValidationError("unknown priority filter", map[string]any{"priority": part})
			}
			filter.Priorities = append(filter.Priorities, priority)
		}
	}
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		filter.SearchTerm = &search
	}
	return filter, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
