package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/campus-support/internal/domain"
	apperrors "github.com/spec-kit/campus-support/pkg/util"
)

func TestAuthorizeDeniesByDefault(t *testing.T) {
	deptID := "dept-1"
	ticket := &domain.Ticket{ID: "t-1", CreatorID: "creator", DepartmentID: &deptID}

	t.Run("nil actor", func(t *testing.T) {
		err := authorize(OpView, nil, ticket)
		assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
	})

	t.Run("unknown role", func(t *testing.T) {
		actor := &domain.User{ID: "u-1", Role: "superuser"}
		err := authorize(OpView, actor, ticket)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("staff without department", func(t *testing.T) {
		actor := &domain.User{ID: "u-1", Role: domain.RoleSupport}
		err := authorize(OpView, actor, ticket)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("same department rule denies unrouted tickets", func(t *testing.T) {
		actor := &domain.User{ID: "u-1", Role: domain.RoleDepartment, DepartmentID: &deptID}
		unrouted := &domain.Ticket{ID: "t-2", CreatorID: "creator"}
		err := authorize(OpAssign, actor, unrouted)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("admin passes every operation", func(t *testing.T) {
		actor := &domain.User{ID: "u-1", Role: domain.RoleAdmin}
		for _, op := range []Operation{OpView, OpComment, OpEdit, OpTransition, OpAssign, OpReopen, OpOverrideClose, OpDelete} {
			assert.NoError(t, authorize(op, actor, ticket), string(op))
		}
	})
}
