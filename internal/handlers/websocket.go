package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"chatsync/internal/middleware"
	"chatsync/internal/relay"
)

// WebSocketUpgrade checks if the request should be upgraded to WebSocket
func (h *Handlers) WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		// the pump goroutines cannot reach fiber locals, stash identity here
		c.Locals("wsUserID", middleware.GetUserID(c))
		c.Locals("wsName", middleware.GetUserName(c))
		return c.Next()
	}

	return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
		"success": false,
		"error":   "WebSocket upgrade required",
	})
}

// WebSocketHandler handles an authenticated websocket connection.
func (h *Handlers) WebSocketHandler(c *websocket.Conn) {
	userID, _ := c.Locals("wsUserID").(string)
	name, _ := c.Locals("wsName").(string)

	client := relay.NewClient(userID, name, c, h.Hub)
	h.Hub.Register <- client

	go client.WritePump()
	client.ReadPump() // blocks until the connection closes
}

// GetWebSocketStats returns connection statistics, for debugging.
func (h *Handlers) GetWebSocketStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"onlineUsers": h.Hub.OnlineCount(),
			"userIds":     h.Hub.OnlineUsers(),
		},
	})
}
