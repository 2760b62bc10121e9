package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/thelewala-agent/internal/api/http/handlers"
	"github.com/spec-kit/thelewala-agent/internal/auth"
	"github.com/spec-kit/thelewala-agent/internal/domain"
)

// RouteConfig bundles dependencies for route registration. Subscriptions and
// Address are nil for vendor agents; Device is nil without a keyring.
type RouteConfig struct {
	Health            *handlers.HealthHandler
	Session           *handlers.SessionHandler
	Stream            *handlers.StreamHandler
	Subscriptions     *handlers.SubscriptionsHandler
	Address           *handlers.AddressHandler
	Notices           *handlers.NoticesHandler
	Device            *handlers.DeviceHandler
	SessionMiddleware *auth.SessionMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/notices", cfg.Notices.List)
	app.Get("/metrics", cfg.Notices.Metrics)

	sessionGroup := app.Group("/session")
	sessionGroup.Get("", cfg.Session.Status)
	sessionGroup.Post("/signin", cfg.Session.SignIn)
	sessionGroup.Post("/signup/vendor", cfg.Session.SignUpVendor)
	sessionGroup.Post("/signup/customer", cfg.Session.SignUpCustomer)
	sessionGroup.Post("/refresh", cfg.Session.Refresh)
	sessionGroup.Post("/signout", cfg.Session.SignOut)

	// stopping must work after the session has lapsed
	app.Post("/stream/stop", cfg.Stream.Stop)

	if cfg.Device != nil {
		app.Get("/device", cfg.Device.Status)
		app.Post("/device/lock", cfg.Device.Lock)
		app.Post("/device/unlock", cfg.Device.Unlock)
	}

	protected := app.Group("", cfg.SessionMiddleware.Handle)
	protected.Get("/profile", cfg.Session.Profile)

	protected.Get("/stream", cfg.Stream.Status)
	protected.Post("/stream/connect", cfg.Stream.Connect)
	protected.Post("/stream/start", cfg.Stream.Start)
	protected.Post("/stream/refresh", auth.RequireRole(domain.RoleVendor), cfg.Stream.Refresh)
	protected.Get("/directory", cfg.Stream.Directory)
	protected.Get("/directory/points", cfg.Stream.Points)

	if cfg.Subscriptions != nil {
		subs := protected.Group("/subscriptions", auth.RequireRole(domain.RoleCustomer))
		subs.Get("", cfg.Subscriptions.List)
		subs.Post("", cfg.Subscriptions.Create)
		subs.Delete("", cfg.Subscriptions.Clear)
		subs.Post("/:vendorId", cfg.Subscriptions.SubscribeNearby)
		subs.Delete("/:vendorId", cfg.Subscriptions.Delete)
	}

	if cfg.Address != nil {
		protected.Post("/address", auth.RequireRole(domain.RoleCustomer), cfg.Address.Register)
	}
}
