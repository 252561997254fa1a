package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pro004/tempmail/ratelimit"
)

// SetupRoutes registers the API routes on app.
func SetupRoutes(app *fiber.App, h *Handler, limiter *ratelimit.Limiter) {
	app.Use(recover.New())
	app.Use(withRequestID())

	app.Get("/health", func(c *fiber.Ctx) error {
		status := "ok"
		code := fiber.StatusOK
		if !h.svc.IsConnected() {
			status = "unavailable"
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{"status": status})
	})

	api := app.Group("/api/v1")
	api.Get("/domains", h.Domains)

	// Everything below acts on the caller's own mailbox.
	session := api.Group("/session", requireOwner())
	session.Post("/", withRateLimit(limiter, ratelimit.ActionGenerate), h.Generate)
	session.Get("/", h.Active)
	session.Delete("/", withRateLimit(limiter, ratelimit.ActionDeleteAccount), h.DeleteAll)

	messages := api.Group("/messages", requireOwner())
	messages.Get("/", withRateLimit(limiter, ratelimit.ActionListMessages), h.Messages)
	messages.Get("/:id", withRateLimit(limiter, ratelimit.ActionFetchMessage), h.Message)
	messages.Delete("/:id", withRateLimit(limiter, ratelimit.ActionDeleteMessage), h.DeleteMessage)
}
