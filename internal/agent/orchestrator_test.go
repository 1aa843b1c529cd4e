package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/calendar"
	"github.com/spec-kit/campus-support/internal/classify"
	"github.com/spec-kit/campus-support/internal/config"
	"github.com/spec-kit/campus-support/internal/domain"
	"github.com/spec-kit/campus-support/internal/events"
	"github.com/spec-kit/campus-support/internal/observability"
	"github.com/spec-kit/campus-support/internal/repository/memory"
	"github.com/spec-kit/campus-support/internal/service"
)

type fixedClassifier struct {
	suggestion classify.Suggestion
}

func (f fixedClassifier) Suggest(context.Context, string) classify.Suggestion {
	return f.suggestion
}

func (f fixedClassifier) Insights(ctx context.Context, description string) classify.Insight {
	return classify.NewHeuristic().Insights(ctx, description)
}

type agentEnv struct {
	store        *memory.Store
	lifecycle    *service.LifecycleService
	comments     *service.CommentService
	orchestrator *Orchestrator
	student      domain.User
	bot          domain.User
}

func newAgentEnv(t *testing.T, classifier classify.Classifier) *agentEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	dispatcher := events.NewInMemoryDispatcher()

	require.NoError(t, service.Seed(ctx, store.Departments(), store.Users(), 4, zap.NewNop()))
	bot, err := store.Users().GetByEmail(ctx, domain.AgentBotEmail)
	require.NoError(t, err)

	student := domain.User{Name: "Student", Email: "student@campus.edu", PasswordHash: "x", Role: domain.RoleStudent}
	require.NoError(t, store.Users().Create(ctx, &student))

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:     store.Tickets(),
		UserRepo:       store.Users(),
		DepartmentRepo: store.Departments(),
		CommentRepo:    store.Comments(),
		AuditRepo:      store.Audit(),
		Dispatcher:     dispatcher,
		Policy:         config.PolicyConfig{AllowReopen: true},
		Logger:         zap.NewNop(),
	})
	comments := service.NewCommentService(store.Comments(), store.Tickets(), dispatcher, lifecycle, zap.NewNop())

	if classifier == nil {
		classifier = classify.NewHeuristic()
	}
	orchestrator := New(Dependencies{
		TicketRepo:          store.Tickets(),
		UserRepo:            store.Users(),
		DepartmentRepo:      store.Departments(),
		CommentRepo:         store.Comments(),
		Lifecycle:           lifecycle,
		Comments:            comments,
		Classifier:          classifier,
		Calendar:            calendar.New(config.CalendarConfig{}, zap.NewNop()),
		Dispatcher:          dispatcher,
		Metrics:             observability.NewMetrics(),
		ConfidenceThreshold: 0.8,
		Logger:              zap.NewNop(),
	})

	return &agentEnv{
		store:        store,
		lifecycle:    lifecycle,
		comments:     comments,
		orchestrator: orchestrator,
		student:      student,
		bot:          *bot,
	}
}

func (e *agentEnv) fileTicket(t *testing.T, description string) *domain.Ticket {
	t.Helper()
	ticket, err := e.lifecycle.Create(context.Background(), e.student, service.TicketCreateInput{
		Title:       "Help needed",
		Description: description,
	})
	require.NoError(t, err)
	return ticket
}

func TestProcessTriagesNewTicket(t *testing.T) {
	env := newAgentEnv(t, nil)
	ctx := context.Background()
	ticket := env.fileTicket(t, "Dorm wifi connectivity issue on the third floor")

	run := env.orchestrator.Process(ctx, ticket.ID)

	assert.Equal(t, domain.StepApplied, run.Outcome)
	assert.Equal(t, domain.StepApplied, run.Routing)
	assert.Equal(t, domain.StepApplied, run.Messaging)
	assert.Equal(t, classify.CategoryNetwork, run.Category)
	assert.Equal(t, "Network Support", run.DepartmentName)
	assert.NotEmpty(t, run.InterimMessage)

	after, err := env.store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, after.Status)
	require.NotNil(t, after.DepartmentID)
	assert.Equal(t, classify.CategoryNetwork, after.Category)
	// heuristic confidence stays below the threshold, priority untouched
	assert.Equal(t, domain.TicketPriorityMedium, after.Priority)

	comments, err := env.store.Comments().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, env.bot.ID, comments[0].AuthorID)
}

func TestProcessIsIdempotent(t *testing.T) {
	env := newAgentEnv(t, nil)
	ctx := context.Background()
	ticket := env.fileTicket(t, "Dorm wifi connectivity issue")

	first := env.orchestrator.Process(ctx, ticket.ID)
	require.Equal(t, domain.StepApplied, first.Outcome)

	second := env.orchestrator.Process(ctx, ticket.ID)
	assert.Equal(t, domain.StepApplied, second.Outcome)
	assert.Equal(t, domain.StepSkipped, second.Routing)
	assert.Equal(t, domain.StepSkipped, second.Messaging)

	comments, err := env.store.Comments().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}

func TestProcessKeepsHumanAssignment(t *testing.T) {
	env := newAgentEnv(t, nil)
	ctx := context.Background()

	general, err := env.store.Departments().GetByName(ctx, "General Support")
	require.NoError(t, err)
	support := domain.User{Name: "Desk", Email: "desk@campus.edu", PasswordHash: "x", Role: domain.RoleSupport, DepartmentID: &general.ID}
	require.NoError(t, env.store.Users().Create(ctx, &support))

	ticket := env.fileTicket(t, "Dorm wifi connectivity issue")
	_, err = env.lifecycle.Assign(ctx, env.bot, ticket.ID, service.AssignInput{
		DepartmentID:  &general.ID,
		SupportUserID: &support.ID,
	})
	require.NoError(t, err)

	run := env.orchestrator.Process(ctx, ticket.ID)
	require.Equal(t, domain.StepApplied, run.Outcome)
	assert.Equal(t, domain.StepSkipped, run.Routing)
	// the classifier still wants Network Support, but the human routing wins
	assert.Equal(t, "Network Support", run.DepartmentName)
	assert.Contains(t, run.InterimMessage, "General Support")

	after, err := env.store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, after.DepartmentID)
	assert.Equal(t, general.ID, *after.DepartmentID)
	require.NotNil(t, after.AssignedSupport)
	assert.Equal(t, support.ID, *after.AssignedSupport)
}

func TestProcessAdoptsConfidentPriority(t *testing.T) {
	env := newAgentEnv(t, fixedClassifier{suggestion: classify.Suggestion{
		Category:   classify.CategoryNetwork,
		Priority:   domain.TicketPriorityHigh,
		Confidence: 0.95,
	}})
	ctx := context.Background()
	ticket := env.fileTicket(t, "everything is on fire")

	run := env.orchestrator.Process(ctx, ticket.ID)
	require.Equal(t, domain.StepApplied, run.Outcome)

	after, err := env.store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, after.Priority)
}

func TestProcessUnknownCategoryFallsBackToGeneral(t *testing.T) {
	env := newAgentEnv(t, fixedClassifier{suggestion: classify.Suggestion{
		Category:   "astrology",
		Priority:   domain.TicketPriorityMedium,
		Confidence: 0.9,
	}})
	ctx := context.Background()
	ticket := env.fileTicket(t, "mystery problem")

	run := env.orchestrator.Process(ctx, ticket.ID)
	require.Equal(t, domain.StepApplied, run.Outcome)
	assert.Equal(t, "General Support", run.DepartmentName)
}

func TestProcessMissingTicketFails(t *testing.T) {
	env := newAgentEnv(t, nil)
	run := env.orchestrator.Process(context.Background(), "no-such-ticket")

	assert.Equal(t, domain.StepFailed, run.Outcome)
	assert.NotEmpty(t, run.Error)
	assert.Equal(t, domain.StepSkipped, run.Messaging)
}

func TestProcessSkipsFinishedTicket(t *testing.T) {
	env := newAgentEnv(t, nil)
	ctx := context.Background()
	ticket := env.fileTicket(t, "wifi flaky, no rush")

	admin := env.bot
	_, err := env.lifecycle.OverrideClose(ctx, admin, ticket.ID)
	require.NoError(t, err)

	run := env.orchestrator.Process(ctx, ticket.ID)
	assert.Equal(t, domain.StepSkipped, run.Outcome)

	comments, cerr := env.store.Comments().ListByTicket(ctx, ticket.ID)
	require.NoError(t, cerr)
	assert.Empty(t, comments)
}
