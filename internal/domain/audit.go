package domain

import "time"

// AuditChangeType captures what a ticket mutation changed.
type AuditChangeType string

const (
	AuditChangeStatus     AuditChangeType = "STATUS_CHANGE"
	AuditChangeAssignee   AuditChangeType = "ASSIGNEE_CHANGE"
	AuditChangeDepartment AuditChangeType = "DEPARTMENT_CHANGE"
	AuditChangePriority   AuditChangeType = "PRIORITY_CHANGE"
	AuditChangeEdit       AuditChangeType = "EDIT"
	AuditChangeReopen     AuditChangeType = "REOPEN"
	AuditChangeOverride   AuditChangeType = "OVERRIDE_CLOSE"
)

// AuditEntry is an immutable record of one ticket mutation: who changed
// what, old value to new value.
type AuditEntry struct {
	ID         string
	TicketID   string
	ActorID    string
	ActorRole  Role
	ChangeType AuditChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
