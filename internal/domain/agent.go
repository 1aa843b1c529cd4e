package domain

import "time"

// StepOutcome is the terminal result of one agent step group or of the
// run as a whole.
type StepOutcome string

const (
	StepApplied StepOutcome = "applied"
	StepSkipped StepOutcome = "skipped"
	StepFailed  StepOutcome = "failed"
)

// AgentRun is the report of a single automated pass over one ticket. It is
// returned to the triggering caller and not persisted.
type AgentRun struct {
	ID             string         `json:"id"`
	TicketID       string         `json:"ticket_id"`
	Category       string         `json:"category,omitempty"`
	Priority       TicketPriority `json:"priority,omitempty"`
	Confidence     float64        `json:"confidence,omitempty"`
	DepartmentID   *string        `json:"department_id,omitempty"`
	DepartmentName string         `json:"department_name,omitempty"`
	Availability   string         `json:"availability,omitempty"`
	InterimMessage string         `json:"interim_message,omitempty"`
	Routing        StepOutcome    `json:"routing"`
	Messaging      StepOutcome    `json:"messaging"`
	Outcome        StepOutcome    `json:"outcome"`
	Error          string         `json:"error,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}
