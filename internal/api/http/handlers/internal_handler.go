package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/campus-support/internal/api/dto"
	"github.com/spec-kit/campus-support/internal/repository"
	apperrors "github.com/spec-kit/campus-support/pkg/util"
)

// InternalHandler serves the shared-secret service-to-service API. It
// bypasses role checks; the secret gate in front of it is the access
// control.
type InternalHandler struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
}

// NewInternalHandler constructs the handler.
func NewInternalHandler(tickets repository.TicketRepository, users repository.UserRepository) *InternalHandler {
	return &InternalHandler{tickets: tickets, users: users}
}

// GetTicket returns a ticket without visibility filtering.
func (h *InternalHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", nil)
		}
		return apperrors.MapError(err)
	}
	return c.JSON(dto.FromTicket(ticket))
}

// TicketSummary returns how many tickets a user has filed overall; the
// agent uses it to enrich its interim message.
func (h *InternalHandler) TicketSummary(c *fiber.Ctx) error {
	userID := c.Params("id")
	if _, err := h.users.GetByID(c.UserContext(), userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", nil)
		}
		return apperrors.MapError(err)
	}
	count, err := h.tickets.CountByCreator(c.UserContext(), userID)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(dto.TicketSummaryResponse{UserID: userID, TicketCount: count})
}
