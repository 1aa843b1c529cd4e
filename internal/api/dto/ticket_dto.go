package dto

import (
	"time"

	"github.com/spec-kit/campus-support/internal/domain"
)

// CreateTicketRequest is the ticket creation payload.
type CreateTicketRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Category     string  `json:"category,omitempty"`
	Priority     string  `json:"priority,omitempty"`
	DepartmentID *string `json:"department_id,omitempty"`
}

// UpdateTicketRequest carries editable fields; absent fields stay put.
type UpdateTicketRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
}

// TransitionRequest advances the ticket status. ExpectedCurrent enables
// optimistic concurrency: the call fails when the stored status differs.
type TransitionRequest struct {
	Status          string  `json:"status"`
	ExpectedCurrent *string `json:"expected_current,omitempty"`
}

// AssignRequest routes and/or assigns a ticket.
type AssignRequest struct {
	DepartmentID  *string `json:"department_id,omitempty"`
	SupportUserID *string `json:"support_user_id,omitempty"`
}

// CommentRequest appends to the ticket thread.
type CommentRequest struct {
	Content string `json:"content"`
}

// TicketResponse is the wire shape of a ticket.
type TicketResponse struct {
	ID              string     `json:"id"`
	ExternalKey     string     `json:"external_key"`
	CreatorID       string     `json:"creator_id"`
	DepartmentID    *string    `json:"department_id,omitempty"`
	AssignedSupport *string    `json:"assigned_support_id,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Category        string     `json:"category,omitempty"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	FirstResponseAt *time.Time `json:"first_response_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
}

// CommentResponse is the wire shape of a thread entry.
type CommentResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	AuthorID   string    `json:"author_id"`
	AuthorRole string    `json:"author_role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditEntryResponse is the wire shape of an audit record.
type AuditEntryResponse struct {
	ID         string         `json:"id"`
	TicketID   string         `json:"ticket_id"`
	ActorID    string         `json:"actor_id"`
	ActorRole  string         `json:"actor_role"`
	ChangeType string         `json:"change_type"`
	OldValue   map[string]any `json:"old_value,omitempty"`
	NewValue   map[string]any `json:"new_value,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// FromTicket maps a domain ticket to its response shape.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:              t.ID,
		ExternalKey:     t.ExternalKey,
		CreatorID:       t.CreatorID,
		DepartmentID:    t.DepartmentID,
		AssignedSupport: t.AssignedSupport,
		Title:           t.Title,
		Description:     t.Description,
		Category:        t.Category,
		Status:          string(t.Status),
		Priority:        string(t.Priority),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		AssignedAt:      t.AssignedAt,
		FirstResponseAt: t.FirstResponseAt,
		ResolvedAt:      t.ResolvedAt,
		ClosedAt:        t.ClosedAt,
	}
}

// FromTickets maps a slice.
func FromTickets(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, FromTicket(&tickets[i]))
	}
	return out
}

// FromComment maps a domain comment.
func FromComment(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		TicketID:   c.TicketID,
		AuthorID:   c.AuthorID,
		AuthorRole: string(c.AuthorRole),
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
	}
}

// FromComments maps a slice.
func FromComments(comments []domain.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, FromComment(&comments[i]))
	}
	return out
}

// FromAuditEntry maps an audit record.
func FromAuditEntry(e *domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         e.ID,
		TicketID:   e.TicketID,
		ActorID:    e.ActorID,
		ActorRole:  string(e.ActorRole),
		ChangeType: string(e.ChangeType),
		OldValue:   e.OldValue,
		NewValue:   e.NewValue,
		CreatedAt:  e.CreatedAt,
	}
}

// FromAuditEntries maps a slice.
func FromAuditEntries(entries []domain.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, FromAuditEntry(&entries[i]))
	}
	return out
}
