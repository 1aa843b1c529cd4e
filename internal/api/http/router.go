package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/api/http/handlers"
	"github.com/spec-kit/campus-support/internal/auth"
	"github.com/spec-kit/campus-support/internal/config"
	"github.com/spec-kit/campus-support/internal/domain"
	"github.com/spec-kit/campus-support/internal/observability"
)

// RouteConfig bundles everything the router mounts.
type RouteConfig struct {
	Config         *config.Config
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware

	Health      *handlers.HealthHandler
	Auth        *handlers.AuthHandler
	Tickets     *handlers.TicketHandler
	Departments *handlers.DepartmentHandler
	Agent       *handlers.AgentHandler
	Internal    *handlers.InternalHandler
}

// NewApp builds the fiber application with all routes mounted.
func NewApp(rc RouteConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      rc.Config.App.Name,
		ErrorHandler: NewErrorHandler(rc.Logger, rc.Metrics),
	})

	app.Use(Recover(rc.Logger))
	app.Use(observability.RequestLogger(rc.Logger, rc.Metrics))
	app.Use(RequestTimeout(rc.Config.App.RequestTimeout()))

	app.Get("/health/live", rc.Health.Live)
	app.Get("/health/ready", rc.Health.Ready)

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", rc.Auth.Register)
	authGroup.Post("/login", rc.Auth.Login)

	authed := api.Group("", rc.AuthMiddleware.Handle)
	authed.Get("/users/me", rc.Auth.Me)

	departments := authed.Group("/departments")
	departments.Get("/", rc.Departments.List)
	staffOnly := auth.RequireRoles(domain.RoleSupport, domain.RoleDepartment, domain.RoleAdmin)
	departments.Get("/:id/supports", staffOnly, rc.Departments.Supports)
	departments.Get("/:id/report", staffOnly, rc.Departments.WeeklyReport)

	tickets := authed.Group("/tickets")
	tickets.Post("/", rc.Tickets.Create)
	tickets.Get("/", rc.Tickets.List)
	tickets.Get("/:id", rc.Tickets.Get)
	tickets.Patch("/:id", rc.Tickets.Update)
	tickets.Delete("/:id", auth.RequireRoles(domain.RoleAdmin), rc.Tickets.Delete)
	tickets.Patch("/:id/status", rc.Tickets.Transition)
	tickets.Patch("/:id/assign", rc.Tickets.Assign)
	tickets.Post("/:id/reopen", rc.Tickets.Reopen)
	tickets.Post("/:id/close", auth.RequireRoles(domain.RoleAdmin), rc.Tickets.OverrideClose)
	tickets.Get("/:id/audit", rc.Tickets.AuditTrail)
	tickets.Get("/:id/ai-insights", rc.Agent.Insights)
	tickets.Post("/:id/comments", rc.Tickets.AddComment)
	tickets.Get("/:id/comments", rc.Tickets.ListComments)

	api.Post("/ai/suggest", rc.AuthMiddleware.Handle, rc.Agent.Suggest)

	api.Post("/agent/process/:id",
		auth.RequireSharedSecret(auth.HeaderAgentKey, rc.Config.Internal.AgentSecret),
		rc.Agent.Process)

	internal := api.Group("/internal",
		auth.RequireSharedSecret(auth.HeaderInternalSecret, rc.Config.Internal.InternalSecret))
	internal.Get("/tickets/:id", rc.Internal.GetTicket)
	internal.Get("/users/:id/tickets/summary", rc.Internal.TicketSummary)

	return app
}
