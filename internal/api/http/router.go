package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/sla-service/internal/api/http/handlers"
	"github.com/spec-kit/sla-service/internal/auth"
	"github.com/spec-kit/sla-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	SLA            *handlers.SLAHandler
	Admin          *handlers.AdminHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	// Gatherer backs /metrics; the route is omitted when nil.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	authenticated := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	slaGroup := authenticated.Group("/sla")
	slaGroup.Post("/preview", cfg.SLA.Preview)
	slaGroup.Get("/dashboard", auth.RequireStaffRole(), cfg.SLA.Dashboard)

	authenticated.Get("/notifications", cfg.Notifications.List)

	tickets := authenticated.Group("/tickets")
	tickets.Post("/", auth.RequireUser(), cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/thread", cfg.Tickets.GetThread)
	tickets.Get("/:id/sla", cfg.Tickets.GetSLA)

	staff := authenticated.Group("/staff/tickets", auth.RequireStaffRole())
	staff.Post("/:id/status", cfg.StaffTickets.ChangeStatus)
	staff.Post("/:id/replies", cfg.StaffTickets.AddReply)
	staff.Post("/:id/self-assign", cfg.StaffTickets.SelfAssign)
	staff.Post("/:id/assign", auth.RequireStaffRole(domain.StaffRoleTeamLead, domain.StaffRoleAdmin), cfg.StaffTickets.Assign)
	staff.Post("/:id/escalate", auth.RequireStaffRole(domain.StaffRoleTeamLead, domain.StaffRoleAdmin), cfg.StaffTickets.Escalate)

	admin := authenticated.Group("/admin", auth.RequireStaffRole(domain.StaffRoleAdmin))
	admin.Get("/sla-policies", cfg.Admin.ListPolicies)
	admin.Post("/sla-policies", cfg.Admin.CreatePolicy)
	admin.Put("/sla-policies/:id", cfg.Admin.UpdatePolicy)
	admin.Delete("/sla-policies/:id", cfg.Admin.DeletePolicy)
	admin.Get("/teams", cfg.Admin.ListTeams)
	admin.Post("/teams", cfg.Admin.CreateTeam)
	admin.Put("/teams/:id/active", cfg.Admin.SetTeamActive)
	admin.Get("/categories", cfg.Admin.ListCategories)
	admin.Post("/categories", cfg.Admin.CreateCategory)
}
