package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"chatsync/internal/handlers"
	"chatsync/internal/middleware"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, h *handlers.Handlers) {
	// Health check (public)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "chatsync relay is running",
		})
	})

	// Auth routes (public)
	auth := app.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)

	// Message history (protected)
	messages := app.Group("/messages", middleware.AuthMiddleware)
	messages.Get("/", h.GetMessages)
	messages.Get("/:conversationId", h.GetMessages)

	// Contact directory (protected)
	contacts := app.Group("/contacts", middleware.AuthMiddleware)
	contacts.Get("/", h.GetContacts)
	contacts.Get("/unread-count", h.GetUnreadCounts)
	contacts.Post("/:contactId/mark-read", h.MarkContactRead)

	// WebSocket route (protected)
	app.Get("/ws", middleware.AuthMiddleware, h.WebSocketUpgrade, websocket.New(h.WebSocketHandler))

	// WebSocket stats (protected, for debugging)
	app.Get("/ws/stats", middleware.AuthMiddleware, h.GetWebSocketStats)
}
