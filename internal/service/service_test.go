package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/config"
	"github.com/spec-kit/campus-support/internal/domain"
	"github.com/spec-kit/campus-support/internal/events"
	"github.com/spec-kit/campus-support/internal/repository"
	"github.com/spec-kit/campus-support/internal/repository/memory"
)

func listFilter() repository.TicketFilter {
	return repository.TicketFilter{Limit: 50}
}

// testEnv wires the services over a shared in-memory store with one
// department pair and an account per role.
type testEnv struct {
	store      *memory.Store
	lifecycle  *LifecycleService
	comments   *CommentService
	dispatcher events.Dispatcher

	deptA domain.Department
	deptB domain.Department

	student  domain.User
	student2 domain.User
	support  domain.User
	supportB domain.User
	head     domain.User
	admin    domain.User
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithPolicy(t, config.PolicyConfig{AllowReopen: true})
}

func newTestEnvWithPolicy(t *testing.T, policy config.PolicyConfig) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	env := &testEnv{store: store, dispatcher: events.NewInMemoryDispatcher()}

	env.deptA = domain.Department{Name: "Network Support"}
	require.NoError(t, store.Departments().Create(ctx, &env.deptA))
	env.deptB = domain.Department{Name: "General Support"}
	require.NoError(t, store.Departments().Create(ctx, &env.deptB))

	env.student = env.addUser(t, "Student One", "student1@campus.edu", domain.RoleStudent, nil)
	env.student2 = env.addUser(t, "Student Two", "student2@campus.edu", domain.RoleStudent, nil)
	env.support = env.addUser(t, "Support A", "support.a@campus.edu", domain.RoleSupport, &env.deptA.ID)
	env.supportB = env.addUser(t, "Support B", "support.b@campus.edu", domain.RoleSupport, &env.deptB.ID)
	env.head = env.addUser(t, "Head A", "head.a@campus.edu", domain.RoleDepartment, &env.deptA.ID)
	env.admin = env.addUser(t, "Admin", "admin@campus.edu", domain.RoleAdmin, nil)

	env.lifecycle = NewLifecycleService(LifecycleDependencies{
		TicketRepo:     store.Tickets(),
		UserRepo:       store.Users(),
		DepartmentRepo: store.Departments(),
		CommentRepo:    store.Comments(),
		AuditRepo:      store.Audit(),
		Dispatcher:     env.dispatcher,
		Policy:         policy,
		Logger:         zap.NewNop(),
	})
	env.comments = NewCommentService(store.Comments(), store.Tickets(), env.dispatcher, env.lifecycle, zap.NewNop())
	return env
}

func (e *testEnv) addUser(t *testing.T, name, email string, role domain.Role, departmentID *string) domain.User {
	t.Helper()
	user := domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: "x",
		Role:         role,
		DepartmentID: departmentID,
	}
	require.NoError(t, e.store.Users().Create(context.Background(), &user))
	return user
}

// newTicket files a ticket as the primary student, optionally pre-routed.
func (e *testEnv) newTicket(t *testing.T, departmentID *string) *domain.Ticket {
	t.Helper()
	ticket, err := e.lifecycle.Create(context.Background(), e.student, TicketCreateInput{
		Title:        "Dorm wifi down",
		Description:  "Dorm wifi connectivity issue on the third floor",
		DepartmentID: departmentID,
	})
	require.NoError(t, err)
	return ticket
}

// routedAssigned returns a ticket routed to department A and assigned to
// its support user.
func (e *testEnv) routedAssigned(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket := e.newTicket(t, &e.deptA.ID)
	assigned, err := e.lifecycle.Assign(context.Background(), e.admin, ticket.ID, AssignInput{
		SupportUserID: &e.support.ID,
	})
	require.NoError(t, err)
	return assigned
}
