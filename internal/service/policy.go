package service

import (
	"github.com/spec-kit/campus-support/internal/domain"
	apperrors "github.com/spec-kit/campus-support/pkg/util"
)

// Operation enumerates the guarded ticket operations.
type Operation string

const (
	OpView          Operation = "view"
	OpComment       Operation = "comment"
	OpEdit          Operation = "edit"
	OpTransition    Operation = "transition"
	OpAssign        Operation = "assign"
	OpReopen        Operation = "reopen"
	OpOverrideClose Operation = "override_close"
	OpDelete        Operation = "delete"
)

// permissionRule narrows an allowed (operation, role) pair to an ownership
// condition. A zero rule allows unconditionally.
type permissionRule struct {
	requireCreator        bool
	requireAssignee       bool
	requireSameDepartment bool
}

// permissionTable is the single authority for role-based access. Every
// mutating operation consults it before touching state; absence of a
// (operation, role) entry means deny.
var permissionTable = map[Operation]map[domain.Role]permissionRule{
	OpView: {
		domain.RoleStudent:    {requireCreator: true},
		domain.RoleSupport:    {requireSameDepartment: true},
		domain.RoleDepartment: {requireSameDepartment: true},
		domain.RoleAdmin:      {},
	},
	OpComment: {
		domain.RoleStudent:    {requireCreator: true},
		domain.RoleSupport:    {requireSameDepartment: true},
		domain.RoleDepartment: {requireSameDepartment: true},
		domain.RoleAdmin:      {},
	},
	OpEdit: {
		domain.RoleStudent: {requireCreator: true},
		domain.RoleAdmin:   {},
	},
	OpTransition: {
		domain.RoleSupport:    {requireAssignee: true},
		domain.RoleDepartment: {requireSameDepartment: true},
		domain.RoleAdmin:      {},
	},
	OpAssign: {
		domain.RoleDepartment: {requireSameDepartment: true},
		domain.RoleAdmin:      {},
	},
	OpReopen: {
		domain.RoleDepartment: {requireSameDepartment: true},
		domain.RoleAdmin:      {},
	},
	OpOverrideClose: {
		domain.RoleAdmin: {},
	},
	OpDelete: {
		domain.RoleAdmin: {},
	},
}

// authorize evaluates the permission table for an actor against a ticket.
func authorize(op Operation, actor *domain.User, ticket *domain.Ticket) error {
	if actor == nil {
		return apperrors.NewUnauthorized("actor required")
	}
	rules, ok := permissionTable[op]
	if !ok {
		return apperrors.NewForbidden("unknown operation")
	}
	rule, ok := rules[actor.Role]
	if !ok {
		return apperrors.NewForbidden("role not permitted for " + string(op))
	}
	if rule.requireCreator && ticket.CreatorID != actor.ID {
		return apperrors.NewForbidden("not the ticket creator")
	}
	if rule.requireAssignee {
		if ticket.AssignedSupport == nil || *ticket.AssignedSupport != actor.ID {
			return apperrors.NewForbidden("not the assigned support user")
		}
	}
	if rule.requireSameDepartment {
		if actor.DepartmentID == nil || ticket.DepartmentID == nil || *actor.DepartmentID != *ticket.DepartmentID {
			return apperrors.NewForbidden("ticket outside your department")
		}
	}
	return nil
}
