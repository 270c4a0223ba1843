package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/engine"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

// ChatHandler manages direct conversation endpoints.
type ChatHandler struct {
	engine *engine.Engine
	unread repositories.UnreadCounters
	hub    *ws.Hub
	audit  *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(eng *engine.Engine, unread repositories.UnreadCounters, hub *ws.Hub, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		engine: eng,
		unread: unread,
		hub:    hub,
		audit:  audit,
	}
}

func (h *ChatHandler) conversation(c *gin.Context) (engine.Conversation, string, bool) {
	peer := strings.TrimSpace(c.Param("peer"))
	userID := middleware.UserID(c)
	if peer == "" || peer == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		return engine.Conversation{}, "", false
	}
	return engine.DirectConversation(userID, peer), peer, true
}

// GetMessages returns the conversation rendered for the caller and resets
// the caller's unread counter for the peer.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	conv, peer, ok := h.conversation(c)
	if !ok {
		return
	}
	userID := middleware.UserID(c)

	msgs, err := h.engine.Messages(c.Request.Context(), conv, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	// Unread bookkeeping must not block reading the conversation.
	if err := h.unread.Reset(c.Request.Context(), userID, peer); err != nil {
		log.Printf("unread reset failed user=%s peer=%s: %v", userID, peer, err)
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a message and broadcasts it.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	conv, _, ok := h.conversation(c)
	if !ok {
		return
	}
	userID := middleware.UserID(c)

	var req struct {
		Text           string `json:"text"`
		ImageURI       string `json:"imageUri"`
		AudioURI       string `json:"audioUri"`
		DurationMillis int64  `json:"durationMillis"`
		ReplyTo        string `json:"replyTo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	body := models.Body{
		Text:           req.Text,
		ImageURI:       req.ImageURI,
		AudioURI:       req.AudioURI,
		DurationMillis: req.DurationMillis,
	}
	msg, err := h.engine.Send(c.Request.Context(), conv, userID, middleware.UserName(c), body, req.ReplyTo)
	if err != nil {
		writeError(c, err)
		return
	}

	h.hub.BroadcastMessage("chat", conv.Key, msg)
	c.JSON(http.StatusCreated, msg)
}

// EditMessage rewrites the text of a still-editable message.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	conv, _, ok := h.conversation(c)
	if !ok {
		return
	}
	userID := middleware.UserID(c)
	messageID := c.Param("message_id")

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.engine.Edit(c.Request.Context(), conv, userID, messageID, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}

	h.hub.BroadcastEdit("chat", conv.Key, msg)
	c.JSON(http.StatusOK, msg)
}

// DeleteMessageForMe hides a message from the caller only.
func (h *ChatHandler) DeleteMessageForMe(c *gin.Context) {
	conv, _, ok := h.conversation(c)
	if !ok {
		return
	}
	userID := middleware.UserID(c)

	if err := h.engine.DeleteForMe(c.Request.Context(), conv, userID, c.Param("message_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteMessageForAll redacts a message for both participants (sender only).
func (h *ChatHandler) DeleteMessageForAll(c *gin.Context) {
	conv, _, ok := h.conversation(c)
	if !ok {
		return
	}
	userID := middleware.UserID(c)
	messageID := c.Param("message_id")

	if _, err := h.engine.DeleteForEveryone(c.Request.Context(), conv, userID, messageID); err != nil {
		writeError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), requestIDFromContext(c), userIDFromContext(c), telemetry.AuditPayload{
		Action:          "message_deleted_for_all",
		ConversationKey: conv.Key,
		MessageID:       messageID,
	})
	h.hub.BroadcastDeletion("chat", conv.Key, messageID)
	c.Status(http.StatusNoContent)
}

// GetReplyContext returns the message a reply points at, as the caller sees it.
func (h *ChatHandler) GetReplyContext(c *gin.Context) {
	conv, _, ok := h.conversation(c)
	if !ok {
		return
	}
	userID := middleware.UserID(c)

	msg, err := h.engine.Reply(c.Request.Context(), conv, userID, c.Param("message_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// GetUnread returns the caller's unread count for the peer.
func (h *ChatHandler) GetUnread(c *gin.Context) {
	_, peer, ok := h.conversation(c)
	if !ok {
		return
	}
	userID := middleware.UserID(c)

	count, err := h.unread.Get(c.Request.Context(), userID, peer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// MarkRead resets the caller's unread count for the peer.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	_, peer, ok := h.conversation(c)
	if !ok {
		return
	}
	userID := middleware.UserID(c)

	if err := h.unread.Reset(c.Request.Context(), userID, peer); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
