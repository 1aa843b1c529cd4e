package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/domain"
	"github.com/spec-kit/campus-support/internal/events"
	"github.com/spec-kit/campus-support/internal/repository"
	apperrors "github.com/spec-kit/campus-support/pkg/util"
)

const maxCommentLength = 4000

// CommentService manages the append-only conversation thread of a
// ticket. Visibility follows the same permission table as viewing the
// ticket itself.
type CommentService struct {
	comments   repository.CommentRepository
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	locks      *ticketLocks
	logger     *zap.Logger
}

// NewCommentService constructs the thread service. It shares the
// lifecycle engine's per-ticket locks so an append's read-modify-write
// cannot interleave with a concurrent status transition.
func NewCommentService(comments repository.CommentRepository, tickets repository.TicketRepository, dispatcher events.Dispatcher, lifecycle *LifecycleService, logger *zap.Logger) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{
		comments:   comments,
		tickets:    tickets,
		dispatcher: dispatcher,
		locks:      lifecycle.locks,
		logger:     logger,
	}
}

// Append adds a comment to the thread. A support user's first comment
// stamps the ticket's first response time.
func (s *CommentService) Append(ctx context.Context, actor domain.User, ticketID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("comment cannot be empty", nil)
	}
	if len(content) > maxCommentLength {
		return nil, apperrors.NewValidationError("comment too long", map[string]any{"max": maxCommentLength})
	}

	release := s.locks.acquire(ticketID)
	defer release()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, apperrors.MapError(err)
	}
	if err := authorize(OpComment, &actor, ticket); err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("closed tickets do not accept comments", nil)
	}

	comment := &domain.Comment{
		TicketID:   ticketID,
		AuthorID:   actor.ID,
		AuthorRole: actor.Role,
		Content:    content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	if actor.Role == domain.RoleSupport && ticket.FirstResponseAt == nil {
		now := time.Now()
		ticket.FirstResponseAt = &now
	}
	// the update also bumps the ticket's updated_at
	if err := s.tickets.Update(ctx, ticket); err != nil {
		s.logger.Warn("ticket stamp failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}

	preview := content
	if len(preview) > 80 {
		preview = preview[:80]
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventCommentAdded,
			TicketID:  ticketID,
			Actor:     events.Actor{ID: actor.ID, Role: actor.Role},
			Timestamp: time.Now(),
			Payload: events.CommentAddedPayload{
				CommentID:   comment.ID,
				AuthorRole:  actor.Role,
				BodyPreview: preview,
			},
		})
	}
	return comment, nil
}

// List returns the thread in chronological order.
func (s *CommentService) List(ctx context.Context, actor domain.User, ticketID string) ([]domain.Comment, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, apperrors.MapError(err)
	}
	if err := authorize(OpView, &actor, ticket); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}
