package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/http/handlers"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Inventory      *handlers.InventoryHandler
	AMC            *handlers.AMCHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Post("/auth/login", cfg.Users.Login)

	admin := auth.RequireRole(domain.UserRoleAdmin)
	technician := auth.RequireRole(domain.UserRoleTechnician)
	staff := auth.RequireRole(domain.UserRoleAdmin, domain.UserRoleTechnician)
	anyone := auth.RequireRole()

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/metrics", admin, cfg.Health.Metrics)

	protected.Post("/create-ticket", auth.RequireRole(domain.UserRoleAdmin, domain.UserRoleCustomer), cfg.Tickets.CreateTicket)
	protected.Get("/tickets-customer/:id", anyone, cfg.Tickets.ListCustomerTickets)
	protected.Get("/tickets", anyone, cfg.Tickets.ListTickets)
	protected.Get("/tickets/:id", anyone, cfg.Tickets.GetTicket)
	protected.Get("/tickets/:id/history", anyone, cfg.Tickets.ListHistory)
	protected.Get("/tickets/:id/inventory", staff, cfg.Inventory.ListUsage)
	protected.Post("/tickets/:id/assign", admin, cfg.Tickets.AssignTicket)
	protected.Post("/tickets/:id/accept", technician, cfg.Tickets.AcceptTicket)
	protected.Post("/tickets/:id/start", technician, cfg.Tickets.StartTicket)
	protected.Post("/tickets/:id/complete", technician, cfg.Tickets.CompleteTicket)

	protected.Get("/users", admin, cfg.Users.ListUsers)
	protected.Post("/users", admin, cfg.Users.CreateUser)

	protected.Get("/inventory", staff, cfg.Inventory.ListCatalog)
	protected.Post("/inventory", admin, cfg.Inventory.CreateItem)
	protected.Patch("/inventory/:id/quantity", admin, cfg.Inventory.AdjustQuantity)

	protected.Post("/amc", admin, cfg.AMC.CreateContract)
	protected.Get("/amc/:id", staff, cfg.AMC.GetContract)
	protected.Post("/amc/maintenances/:id/assign", admin, cfg.AMC.AssignTechnician)
}
