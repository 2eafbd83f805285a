package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-desk/internal/api/http/handlers"
	"github.com/spec-kit/incident-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Audit          *handlers.AuditHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	// Registration resolves a principal when one is presented so an
	// administrator can create staff accounts through it.
	authGroup.Post("/register", cfg.AuthMiddleware.HandleOptional, cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/mfa/verify", cfg.Auth.VerifyMFA)

	session := authGroup.Group("", cfg.AuthMiddleware.Handle)
	session.Get("/me", cfg.Auth.Me)
	session.Post("/logout", cfg.Auth.Logout)
	session.Post("/password/change", cfg.Auth.ChangePassword)
	// MFA setup stays reachable before the session is second-factor
	// verified so required roles can enroll.
	session.Post("/mfa/setup", cfg.Auth.SetupMFA)
	session.Post("/mfa/activate", cfg.Auth.ActivateMFA)
	session.Post("/mfa/disable", cfg.AuthMiddleware.RequireMFA, cfg.Auth.DisableMFA)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, cfg.AuthMiddleware.RequireMFA)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/escalate", cfg.Tickets.EscalateTicket)
	tickets.Post("/:id/reassign", cfg.Tickets.ReassignTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/attachments", cfg.Tickets.AddAttachment)
	tickets.Get("/:id/history", cfg.Tickets.GetHistory)

	audit := app.Group("/audit", cfg.AuthMiddleware.Handle, cfg.AuthMiddleware.RequireMFA)
	audit.Get("", cfg.Audit.ListEntries)
	audit.Get("/stats", cfg.Audit.Stats)
}
