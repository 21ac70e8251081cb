package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"chatsync/internal/models"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 100
)

// GetMessages returns a history page: global when no conversation id is in
// the path, scoped otherwise. Pagination runs backwards from the before
// timestamp; the page itself comes back in ascending arrival order.
func (h *Handlers) GetMessages(c *fiber.Ctx) error {
	conversationID := c.Params("conversationId")

	before, _ := strconv.ParseInt(c.Query("before", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultHistoryLimit)))
	if limit < 1 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	messages, hasMore, err := h.Store.Messages.List(c.Context(), conversationID, before, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Database error",
		})
	}
	if messages == nil {
		messages = []models.Message{}
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"hasMore":  hasMore,
	})
}
