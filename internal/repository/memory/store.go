// Package memory provides an in-memory implementation of the repository
// interfaces. It backs unit tests and deployments started without a
// Postgres DSN. Semantics mirror the SQL implementations, including
// pgx.ErrNoRows for missing rows.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/campus-support/internal/domain"
	"github.com/spec-kit/campus-support/internal/repository"
)

// Store bundles the in-memory repositories over one shared dataset.
type Store struct {
	mu          sync.RWMutex
	tickets     map[string]domain.Ticket
	users       map[string]domain.User
	departments map[string]domain.Department
	comments    map[string][]domain.Comment
	audit       map[string][]domain.AuditEntry
	now         func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tickets:     make(map[string]domain.Ticket),
		users:       make(map[string]domain.User),
		departments: make(map[string]domain.Department),
		comments:    make(map[string][]domain.Comment),
		audit:       make(map[string][]domain.AuditEntry),
		now:         time.Now,
	}
}

// SetClock overrides the store clock; tests use it to place tickets inside
// or outside reporting windows.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Tickets() repository.TicketRepository         { return (*ticketStore)(s) }
func (s *Store) Users() repository.UserRepository             { return (*userStore)(s) }
func (s *Store) Departments() repository.DepartmentRepository { return (*departmentStore)(s) }
func (s *Store) Comments() repository.CommentRepository       { return (*commentStore)(s) }
func (s *Store) Audit() repository.AuditRepository            { return (*auditStore)(s) }

type ticketStore Store

func (s *ticketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *ticketStore) Update(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = s.now()
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *ticketStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (s *ticketStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.tickets, id)
	return nil
}

func (s *ticketStore) CountByCreator(_ context.Context, creatorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, ticket := range s.tickets {
		if ticket.CreatorID == creatorID {
			count++
		}
	}
	return count, nil
}

func (s *ticketStore) ListDepartmentWindow(_ context.Context, departmentID string, from, to time.Time) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inWindow := func(t time.Time) bool {
		return !t.Before(from) && t.Before(to)
	}
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.DepartmentID == nil || *ticket.DepartmentID != departmentID {
			continue
		}
		if inWindow(ticket.CreatedAt) || inWindow(ticket.UpdatedAt) {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *ticketStore) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if !matches(ticket, filter) {
			continue
		}
		result = append(result, ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func matches(ticket domain.Ticket, filter repository.TicketFilter) bool {
	if filter.CreatorID != nil && ticket.CreatorID != *filter.CreatorID {
		return false
	}
	if filter.DepartmentID != nil {
		if ticket.DepartmentID == nil || *ticket.DepartmentID != *filter.DepartmentID {
			return false
		}
	}
	if filter.AssigneeID != nil {
		if ticket.AssignedSupport == nil || *ticket.AssignedSupport != *filter.AssigneeID {
			return false
		}
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
		return false
	}
	if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(ticket.Title), term) &&
			!strings.Contains(strings.ToLower(ticket.Description), term) {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, priority domain.TicketPriority) bool {
	for _, candidate := range list {
		if candidate == priority {
			return true
		}
	}
	return false
}

type userStore Store

func (s *userStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *userStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *userStore) ListSupportByDepartment(_ context.Context, departmentID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.User
	for _, user := range s.users {
		if user.Role == domain.RoleSupport && user.DepartmentID != nil && *user.DepartmentID == departmentID {
			result = append(result, user)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type departmentStore Store

func (s *departmentStore) Create(_ context.Context, department *domain.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	department.ID = uuid.NewString()
	department.CreatedAt = now
	department.UpdatedAt = now
	s.departments[department.ID] = *department
	return nil
}

func (s *departmentStore) GetByID(_ context.Context, id string) (*domain.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dept, ok := s.departments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &dept, nil
}

func (s *departmentStore) GetByName(_ context.Context, name string) (*domain.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, dept := range s.departments {
		if dept.Name == name {
			d := dept
			return &d, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *departmentStore) List(_ context.Context) ([]domain.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Department, 0, len(s.departments))
	for _, dept := range s.departments {
		result = append(result, dept)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

type commentStore Store

func (s *commentStore) Create(_ context.Context, comment *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment.ID = uuid.NewString()
	comment.CreatedAt = s.now()
	s.comments[comment.TicketID] = append(s.comments[comment.TicketID], *comment)
	return nil
}

func (s *commentStore) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.comments[ticketID]
	result := make([]domain.Comment, len(stored))
	copy(result, stored)
	return result, nil
}

func (s *commentStore) DeleteByTicket(_ context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.comments, ticketID)
	return nil
}

type auditStore Store

func (s *auditStore) Create(_ context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = s.now()
	s.audit[entry.TicketID] = append(s.audit[entry.TicketID], *entry)
	return nil
}

func (s *auditStore) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.audit[ticketID]
	result := make([]domain.AuditEntry, len(stored))
	copy(result, stored)
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *auditStore) DeleteByTicket(_ context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.audit, ticketID)
	return nil
}
