package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/campus-support/internal/api/dto"
	"github.com/spec-kit/campus-support/internal/repository"
	"github.com/spec-kit/campus-support/internal/service"
	apperrors "github.com/spec-kit/campus-support/pkg/util"
)

// DepartmentHandler serves the department directory and weekly reports.
type DepartmentHandler struct {
	departments repository.DepartmentRepository
	users       repository.UserRepository
	reports     *service.ReportService
}

// NewDepartmentHandler constructs the handler.
func NewDepartmentHandler(departments repository.DepartmentRepository, users repository.UserRepository, reports *service.ReportService) *DepartmentHandler {
	return &DepartmentHandler{departments: departments, users: users, reports: reports}
}

// List returns every department.
func (h *DepartmentHandler) List(c *fiber.Ctx) error {
	departments, err := h.departments.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"departments": dto.FromDepartments(departments)})
}

// Supports returns the support users of one department.
func (h *DepartmentHandler) Supports(c *fiber.Ctx) error {
	supports, err := h.users.ListSupportByDepartment(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"supports": dto.FromUsers(supports)})
}

// WeeklyReport returns the trailing seven day activity summary. An
// optional as_of query parameter (RFC 3339) anchors the window.
func (h *DepartmentHandler) WeeklyReport(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	var asOf *time.Time
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return apperrors.NewValidationError("as_of must be RFC 3339", map[string]any{"as_of": raw})
		}
		asOf = &parsed
	}

	report, err := h.reports.Weekly(c.UserContext(), actor, c.Params("id"), asOf)
	if err != nil {
		return err
	}
	return c.JSON(report)
}
