// Package agent automates the first pass over a freshly filed ticket:
// classify, route to a department, check assignee availability, move the
// ticket into progress, and leave an interim message for the requester.
// Every step acts through the same services human actors use.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/calendar"
	"github.com/spec-kit/campus-support/internal/classify"
	"github.com/spec-kit/campus-support/internal/domain"
	"github.com/spec-kit/campus-support/internal/events"
	"github.com/spec-kit/campus-support/internal/observability"
	"github.com/spec-kit/campus-support/internal/repository"
	"github.com/spec-kit/campus-support/internal/service"
	apperrors "github.com/spec-kit/campus-support/pkg/util"
)

// categoryDepartments maps classifier categories to seeded department
// names. Unlisted categories land on the general desk.
var categoryDepartments = map[string]string{
	classify.CategoryNetwork:  "Network Support",
	classify.CategoryHardware: "Hardware Support",
	classify.CategoryRecords:  "Student Services",
}

const fallbackDepartment = "General Support"

// Orchestrator runs the automated triage pipeline.
type Orchestrator struct {
	tickets     repository.TicketRepository
	users       repository.UserRepository
	departments repository.DepartmentRepository
	comments    repository.CommentRepository
	lifecycle   *service.LifecycleService
	thread      *service.CommentService
	classifier  classify.Classifier
	calendar    calendar.Calendar
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	threshold   float64
	logger      *zap.Logger
}

// Dependencies wires the orchestrator.
type Dependencies struct {
	TicketRepo          repository.TicketRepository
	UserRepo            repository.UserRepository
	DepartmentRepo      repository.DepartmentRepository
	CommentRepo         repository.CommentRepository
	Lifecycle           *service.LifecycleService
	Comments            *service.CommentService
	Classifier          classify.Classifier
	Calendar            calendar.Calendar
	Dispatcher          events.Dispatcher
	Metrics             *observability.Metrics
	ConfidenceThreshold float64
	Logger              *zap.Logger
}

// New constructs the orchestrator.
func New(deps Dependencies) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := deps.ConfidenceThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}
	return &Orchestrator{
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		departments: deps.DepartmentRepo,
		comments:    deps.CommentRepo,
		lifecycle:   deps.Lifecycle,
		thread:      deps.Comments,
		classifier:  deps.Classifier,
		calendar:    deps.Calendar,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		threshold:   threshold,
		logger:      logger,
	}
}

// Process runs the full pipeline over one ticket and returns the run
// report. Processing is idempotent: rerunning over an already triaged
// ticket skips the steps that would repeat and never duplicates the
// interim message.
func (o *Orchestrator) Process(ctx context.Context, ticketID string) *domain.AgentRun {
	run := &domain.AgentRun{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Routing:   domain.StepSkipped,
		Messaging: domain.StepSkipped,
		StartedAt: time.Now(),
	}
	defer o.finish(ctx, run)

	bot, err := o.users.GetByEmail(ctx, domain.AgentBotEmail)
	if err != nil {
		return o.fail(run, fmt.Errorf("agent bot account missing: %w", err))
	}

	ticket, err := o.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o.fail(run, apperrors.NewNotFound("ticket", nil))
		}
		return o.fail(run, err)
	}
	if ticket.Status == domain.TicketStatusResolved || ticket.Status == domain.TicketStatusClosed {
		run.Outcome = domain.StepSkipped
		return run
	}

	suggestion := o.classifier.Suggest(ctx, ticket.Description)
	run.Category = suggestion.Category
	run.Priority = suggestion.Priority
	run.Confidence = suggestion.Confidence

	dept, err := o.resolveDepartment(ctx, suggestion.Category)
	if err != nil {
		return o.fail(run, err)
	}
	run.DepartmentID = &dept.ID
	run.DepartmentName = dept.Name

	if ticket.AssignedSupport != nil {
		availability := o.calendar.Check(ctx, *ticket.AssignedSupport)
		run.Availability = describeAvailability(availability)
	}

	ticket, err = o.apply(ctx, run, *bot, ticket, dept, suggestion)
	if err != nil {
		return o.fail(run, err)
	}

	if err := o.message(ctx, run, *bot, ticket, dept); err != nil {
		return o.fail(run, err)
	}

	run.Outcome = domain.StepApplied
	return run
}

// apply mutates the ticket through the lifecycle engine: routing,
// priority adoption, and the move to in_progress.
func (o *Orchestrator) apply(ctx context.Context, run *domain.AgentRun, bot domain.User, ticket *domain.Ticket, dept *domain.Department, suggestion classify.Suggestion) (*domain.Ticket, error) {
	switch {
	case ticket.DepartmentID != nil && ticket.AssignedSupport != nil:
		// a staff member already routed and assigned this ticket; routing
		// stays untouched even when the classifier disagrees
	case ticket.DepartmentID == nil || *ticket.DepartmentID != dept.ID:
		updated, err := o.lifecycle.Assign(ctx, bot, ticket.ID, service.AssignInput{DepartmentID: &dept.ID})
		if err != nil {
			return nil, fmt.Errorf("routing: %w", err)
		}
		ticket = updated
		run.Routing = domain.StepApplied
	}

	var priority *domain.TicketPriority
	if suggestion.Confidence >= o.threshold && suggestion.Priority.Valid() {
		priority = &suggestion.Priority
	}
	updated, err := o.lifecycle.Reclassify(ctx, bot, ticket.ID, suggestion.Category, priority)
	if err != nil {
		return nil, fmt.Errorf("reclassify: %w", err)
	}
	ticket = updated

	if ticket.Status == domain.TicketStatusOpen {
		updated, err := o.lifecycle.Transition(ctx, bot, ticket.ID, domain.TicketStatusInProgress, nil)
		if err != nil {
			return nil, fmt.Errorf("transition: %w", err)
		}
		ticket = updated
	}
	return ticket, nil
}

// message leaves the interim comment unless the identical text is
// already on the thread.
func (o *Orchestrator) message(ctx context.Context, run *domain.AgentRun, bot domain.User, ticket *domain.Ticket, dept *domain.Department) error {
	// the message names the department the ticket actually sits in, which
	// differs from the classifier's pick when routing was locked
	if ticket.DepartmentID != nil && *ticket.DepartmentID != dept.ID {
		actual, err := o.departments.GetByID(ctx, *ticket.DepartmentID)
		if err != nil {
			return fmt.Errorf("department lookup: %w", err)
		}
		dept = actual
	}

	history, err := o.tickets.CountByCreator(ctx, ticket.CreatorID)
	if err != nil {
		o.logger.Warn("requester history lookup failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		history = 0
	}

	text := composeInterimMessage(ticket, dept, run.Availability, history)
	run.InterimMessage = text

	existing, err := o.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return fmt.Errorf("thread lookup: %w", err)
	}
	for _, comment := range existing {
		if comment.AuthorID == bot.ID && comment.Content == text {
			run.Messaging = domain.StepSkipped
			return nil
		}
	}

	if _, err := o.thread.Append(ctx, bot, ticket.ID, text); err != nil {
		return fmt.Errorf("messaging: %w", err)
	}
	run.Messaging = domain.StepApplied
	return nil
}

func (o *Orchestrator) resolveDepartment(ctx context.Context, category string) (*domain.Department, error) {
	name, ok := categoryDepartments[category]
	if !ok {
		name = fallbackDepartment
	}
	dept, err := o.departments.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("department %q not seeded", name)
		}
		return nil, err
	}
	return dept, nil
}

func (o *Orchestrator) fail(run *domain.AgentRun, err error) *domain.AgentRun {
	run.Outcome = domain.StepFailed
	run.Error = err.Error()
	o.logger.Warn("agent run failed",
		zap.String("ticket_id", run.TicketID),
		zap.Error(err))
	return run
}

func (o *Orchestrator) finish(ctx context.Context, run *domain.AgentRun) {
	run.FinishedAt = time.Now()
	if o.metrics != nil {
		o.metrics.RecordAgentRun(string(run.Outcome))
	}
	if o.dispatcher != nil {
		_ = o.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventAgentRunFinished,
			TicketID:  run.TicketID,
			Actor:     events.Actor{Role: domain.RoleAdmin},
			Timestamp: time.Now(),
			Payload: events.AgentRunFinishedPayload{
				RunID:   run.ID,
				Outcome: run.Outcome,
			},
		})
	}
}

func composeInterimMessage(ticket *domain.Ticket, dept *domain.Department, availability string, requesterTickets int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for reaching out. Your ticket %s has been routed to %s and is now in progress.", ticket.ExternalKey, dept.Name)
	if ticket.Category != "" {
		fmt.Fprintf(&b, " We classified it as %s with %s priority.", ticket.Category, ticket.Priority)
	}
	if availability != "" {
		fmt.Fprintf(&b, " %s", availability)
	}
	if requesterTickets > 1 {
		fmt.Fprintf(&b, " We see %d tickets from you overall; we will keep the context in mind.", requesterTickets)
	}
	b.WriteString(" A member of the support team will follow up here.")
	return b.String()
}

func describeAvailability(a calendar.Availability) string {
	if !a.Known {
		return ""
	}
	if a.Available {
		return "The assigned support member is currently available."
	}
	if a.NextSlot != "" {
		return fmt.Sprintf("The assigned support member is busy; next opening %s.", a.NextSlot)
	}
	return "The assigned support member is currently unavailable."
}
