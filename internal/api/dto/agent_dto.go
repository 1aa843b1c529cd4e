package dto

import "github.com/spec-kit/campus-support/internal/domain"

// SuggestRequest asks the classifier for a category and priority.
type SuggestRequest struct {
	Description string `json:"description"`
}

// SuggestResponse is the classifier output on the wire.
type SuggestResponse struct {
	Category   string  `json:"category"`
	Priority   string  `json:"priority"`
	Confidence float64 `json:"confidence"`
}

// InsightResponse carries the AI summary and reply draft for a ticket.
type InsightResponse struct {
	Summary    string `json:"summary"`
	DraftReply string `json:"draft_reply"`
}

// AgentRunResponse wraps the run report. The domain struct already
// carries json tags, so it passes through unchanged.
type AgentRunResponse struct {
	Run *domain.AgentRun `json:"run"`
}

// TicketSummaryResponse answers the internal requester-history endpoint.
type TicketSummaryResponse struct {
	UserID      string `json:"user_id"`
	TicketCount int    `json:"ticket_count"`
}
