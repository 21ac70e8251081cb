package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"chatsync/internal/models"
	"chatsync/internal/protocol"
	"chatsync/internal/store"
)

// handleSend runs the accept pipeline for one submission: persist, ack the
// sender, fan out to recipients, then report delivery back to the sender.
func (c *Client) handleSend(p protocol.SendPayload) {
	msg := &models.Message{
		Author:         p.Author,
		Text:           p.Text,
		Type:           models.MessageType(p.Type),
		Status:         models.StatusSent,
		SenderID:       c.UserID,
		ConversationID: p.ConversationID,
	}

	ctx := context.Background()
	if err := c.Hub.store.Messages.Insert(ctx, msg); err != nil {
		log.Printf("failed to store message from %s: %v", c.UserID, err)
		c.sendError("failed to store message", p.TempID)
		return
	}

	c.Hub.SendToUser(c.UserID, protocol.NewEnvelope(protocol.EventAck, protocol.AckPayload{
		TempID:    p.TempID,
		ID:        msg.ID,
		Status:    string(models.StatusSent),
		Timestamp: msg.Timestamp,
	}))

	outbound := protocol.NewEnvelope(protocol.EventNewMessage, msg)
	if p.ConversationID != "" {
		if !c.Hub.SendToUser(p.ConversationID, outbound) {
			log.Printf("recipient %s offline, message stored", p.ConversationID)
		}
	} else {
		c.Hub.BroadcastToOthers(c.UserID, outbound)
	}

	c.updateContactDirectory(ctx, msg)

	c.Hub.SendToUser(c.UserID, protocol.NewEnvelope(protocol.EventDelivered, protocol.DeliveredPayload{
		ID: msg.ID,
	}))
}

// updateContactDirectory keeps the server-side contact record of the sender
// current: last-message preview always, unread counter when the counterpart
// is not connected to see the message live.
func (c *Client) updateContactDirectory(ctx context.Context, msg *models.Message) {
	contacts := c.Hub.store.Contacts
	if err := contacts.UpdateLastMessage(ctx, msg.SenderID, msg.Text, msg.Timestamp); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("failed to update last message: %v", err)
	}
	if msg.ConversationID != "" && !c.Hub.IsUserOnline(msg.ConversationID) {
		if err := contacts.IncrementUnread(ctx, msg.SenderID); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("failed to increment unread: %v", err)
		}
	}
}

// handleTyping relays a typing signal, stamped with the sender's identity.
func (c *Client) handleTyping(info models.TypingInfo) {
	info.UserID = c.UserID
	if info.Author == "" {
		info.Author = c.Name
	}

	env := protocol.NewEnvelope(protocol.EventTyping, info)
	if info.ConversationID != "" {
		if !c.Hub.SendToUser(info.ConversationID, env) {
			log.Printf("contact %s offline, typing ignored", info.ConversationID)
		}
		return
	}
	c.Hub.BroadcastToOthers(c.UserID, env)
}

// handleMarkRead records the read status and fans the read receipt out to
// everyone else.
func (c *Client) handleMarkRead(p protocol.ReadPayload) {
	if err := c.Hub.store.Messages.MarkRead(context.Background(), p.IDs); err != nil {
		log.Printf("failed to mark messages read: %v", err)
		return
	}
	c.Hub.BroadcastToOthers(c.UserID, protocol.NewEnvelope(protocol.EventRead, protocol.ReadPayload{
		IDs:    p.IDs,
		ReadBy: c.UserID,
	}))
	log.Printf("%d messages marked read by %s", len(p.IDs), c.UserID)
}

// tempIDFrom best-effort extracts the tempId from a raw frame so a
// validation error can still be attributed to the submission.
func tempIDFrom(data []byte) string {
	var frame struct {
		Payload struct {
			TempID string `json:"tempId"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return ""
	}
	return frame.Payload.TempID
}
