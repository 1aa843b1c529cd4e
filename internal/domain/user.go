package domain

import "time"

// Role enumerates the caller roles recognized by the permission table.
type Role string

const (
	RoleStudent    Role = "student"
	RoleSupport    Role = "support"
	RoleDepartment Role = "department"
	RoleAdmin      Role = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleSupport, RoleDepartment, RoleAdmin:
		return true
	}
	return false
}

// RequiresDepartment reports whether accounts with this role must belong
// to a department.
func (r Role) RequiresDepartment() bool {
	return r == RoleSupport || r == RoleDepartment
}

// User is the domain model for every account: students, support staff,
// department operators, and admins.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	DepartmentID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AgentBotEmail identifies the seeded system account the agent
// orchestrator acts as.
const AgentBotEmail = "agent@system.local"
