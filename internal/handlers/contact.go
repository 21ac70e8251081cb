package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"chatsync/internal/models"
	"chatsync/internal/store"
)

// GetContacts returns the contact directory.
func (h *Handlers) GetContacts(c *fiber.Ctx) error {
	contacts, err := h.Store.Contacts.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Database error",
		})
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	return c.JSON(contacts)
}

// MarkContactRead zeroes a contact's unread counter.
func (h *Handlers) MarkContactRead(c *fiber.Ctx) error {
	contactID := c.Params("contactId")
	if err := h.Store.Contacts.MarkRead(c.Context(), contactID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "Contact not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Database error",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetUnreadCounts returns the aggregate of unread conversations and messages.
func (h *Handlers) GetUnreadCounts(c *fiber.Ctx) error {
	counts, err := h.Store.Contacts.UnreadCounts(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Database error",
		})
	}
	return c.JSON(counts)
}
