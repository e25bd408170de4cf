package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/fortress-api/internal/config"
	"github.com/noah-isme/fortress-api/internal/handler"
	"github.com/noah-isme/fortress-api/internal/middleware"
	"github.com/noah-isme/fortress-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	BattleHandler     *handler.BattleHandler
	ScoreHandler      *handler.ScoreHandler
	SeedHandler       *handler.SeedHandler
	HealthHandler     fiber.Handler
	JWTMiddleware     fiber.Handler
	// SubmissionRateLimit caps submissions per user per minute. Zero disables the limit.
	SubmissionRateLimit int
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	healthHandler := deps.HealthHandler
	if healthHandler == nil {
		healthHandler = handler.HealthCheck(cfg, nil, nil)
	}
	api.Get("/health", healthHandler)

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/tool/seed"))
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	v2 := app.Group("/api/v2", jwtMiddleware)
	requireUser := middleware.WithAuth(next, middleware.AuthOptions{RequireUser: true})
	requireStudent := middleware.WithAuth(next, middleware.AuthOptions{Role: middleware.AuthRoleStudent})

	if deps.SubmissionHandler != nil {
		submissions := v2.Group("/submissions", requireStudent)
		if deps.SubmissionRateLimit > 0 {
			submissions.Use(middleware.RateLimit("submissions", deps.SubmissionRateLimit, time.Minute))
		}
		deps.SubmissionHandler.Register(submissions)
	}

	if deps.BattleHandler != nil {
		battles := v2.Group("/battles", requireUser)
		deps.BattleHandler.Register(battles, middleware.RequireRole("teacher", "admin"))
	}

	if deps.ScoreHandler != nil {
		deps.ScoreHandler.Register(v2.Group("/scores", requireUser))
	}
}

func next(c *fiber.Ctx) error {
	return c.Next()
}
