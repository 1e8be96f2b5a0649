package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/taskhub/task-auth-service/internal/api/http/handlers"
	"github.com/taskhub/task-auth-service/internal/auth"
	"github.com/taskhub/task-auth-service/internal/domain"
	"github.com/taskhub/task-auth-service/internal/observability"
)

// AccessRules is the route access table. Anything not listed requires an
// authenticated caller.
func AccessRules() []auth.Rule {
	return []auth.Rule{
		{Pattern: "/api/token", Access: auth.Public()},
		{Pattern: "/health/**", Access: auth.Public()},
		{Pattern: "/metrics", Access: auth.Public()},
		{Pattern: "/api/tasks/admin/**", Access: auth.RequireRole(domain.RoleAdmin)},
		{Pattern: "/api/users/**", Access: auth.RequireRole(domain.RoleAdmin)},
		{Pattern: "/**", Access: auth.Authenticated()},
	}
}

// NewApp builds the fiber app. Routing is case sensitive so the policy and
// the router always agree on which route a path names.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		CaseSensitive:         true,
		DisableStartupMessage: true,
	})
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Tasks          *handlers.TasksHandler
	AuthMiddleware *auth.AuthMiddleware
	Policy         *auth.Policy
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes behind the authentication gate and the
// authorization policy.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.AuthMiddleware.Handle)
	app.Use(cfg.Policy.Enforce(func(d auth.Decision) {
		outcome := "allow"
		if !d.Allowed {
			outcome = d.Reason.String()
		}
		cfg.Metrics.RecordAuthDecision(outcome)
	}))

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")
	api.Post("/token", cfg.Auth.Login)

	users := api.Group("/users")
	users.Get("", cfg.Users.List)
	users.Post("", cfg.Users.Create)
	users.Get("/:username", cfg.Users.Get)
	users.Put("/:username", cfg.Users.Update)
	users.Delete("/:username", cfg.Users.Delete)

	tasks := api.Group("/tasks")
	tasks.Post("/new", cfg.Tasks.Create)
	tasks.Get("/all_tasks", cfg.Tasks.ListAll)
	tasks.Get("/all_tasks/:userId", cfg.Tasks.ListByUser)
	tasks.Get("/all_done_tasks/:userId", cfg.Tasks.ListDoneByUser)
	tasks.Get("/all_undone_tasks/:userId", cfg.Tasks.ListUndoneByUser)
	tasks.Get("/done", cfg.Tasks.ListDone)
	tasks.Get("/undone", cfg.Tasks.ListUndone)
	tasks.Put("/admin/update/:id", cfg.Tasks.Update)
	tasks.Put("/admin/:id", cfg.Tasks.MarkDone)
	tasks.Delete("/admin/delete/:id", cfg.Tasks.Delete)
	tasks.Get("/:id", cfg.Tasks.Get)
}
