package handlers

import (
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

// GroupHandler manages group conversation endpoints.
type GroupHandler struct {
	engine *engine.Engine
	groups repositories.GroupRegistry
	hub    *ws.Hub
	audit  *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(eng *engine.Engine, groups repositories.GroupRegistry, hub *ws.Hub, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{
		engine: eng,
		groups: groups,
		hub:    hub,
		audit:  audit,
	}
}

// CreateGroup handles POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID := middleware.UserID(c)

	var req struct {
		Name         string   `json:"name" binding:"required"`
		Participants []string `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.Create(c.Request.Context(), userID, req.Name, req.Participants)
	if err != nil {
		writeError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), requestIDFromContext(c), userIDFromContext(c), telemetry.AuditPayload{
		Action:  "group_created",
		Subject: group.ID,
	})
	c.JSON(http.StatusCreated, group)
}

// ListGroups returns the groups the caller belongs to.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groups.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroup returns one group as seen by the caller.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	group, err := h.groups.Get(c.Request.Context(), middleware.UserID(c), c.Param("group_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// GetMessages returns the group conversation rendered for the caller.
func (h *GroupHandler) GetMessages(c *gin.Context) {
	conv := engine.GroupConversation(c.Param("group_id"))
	msgs, err := h.engine.Messages(c.Request.Context(), conv, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a group message and broadcasts it.
func (h *GroupHandler) PostMessage(c *gin.Context) {
	conv := engine.GroupConversation(c.Param("group_id"))
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

	h.hub.BroadcastMessage("group", conv.Key, msg)
	c.JSON(http.StatusCreated, msg)
}

// EditMessage rewrites a still-editable group message.
func (h *GroupHandler) EditMessage(c *gin.Context) {
	conv := engine.GroupConversation(c.Param("group_id"))
	userID := middleware.UserID(c)

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.engine.Edit(c.Request.Context(), conv, userID, c.Param("message_id"), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}

	h.hub.BroadcastEdit("group", conv.Key, msg)
	c.JSON(http.StatusOK, msg)
}

// DeleteMessageForMe hides a group message from the caller only.
func (h *GroupHandler) DeleteMessageForMe(c *gin.Context) {
	conv := engine.GroupConversation(c.Param("group_id"))
	if err := h.engine.DeleteForMe(c.Request.Context(), conv, middleware.UserID(c), c.Param("message_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteMessageForAll redacts a group message for every member (sender only).
func (h *GroupHandler) DeleteMessageForAll(c *gin.Context) {
	conv := engine.GroupConversation(c.Param("group_id"))
	messageID := c.Param("message_id")

	if _, err := h.engine.DeleteForEveryone(c.Request.Context(), conv, middleware.UserID(c), messageID); err != nil {
		writeError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), requestIDFromContext(c), userIDFromContext(c), telemetry.AuditPayload{
		Action:          "message_deleted_for_all",
		ConversationKey: conv.Key,
		MessageID:       messageID,
	})
	h.hub.BroadcastDeletion("group", conv.Key, messageID)
	c.Status(http.StatusNoContent)
}

// GetReplyContext returns the group message a reply points at.
func (h *GroupHandler) GetReplyContext(c *gin.Context) {
	conv := engine.GroupConversation(c.Param("group_id"))
	msg, err := h.engine.Reply(c.Request.Context(), conv, middleware.UserID(c), c.Param("message_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// AddParticipants handles POST /groups/:group_id/participants.
func (h *GroupHandler) AddParticipants(c *gin.Context) {
	var req struct {
		Participants []string `json:"participants" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.AddParticipants(c.Request.Context(), c.Param("group_id"), middleware.UserID(c), req.Participants)
	if err != nil {
		writeError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), requestIDFromContext(c), userIDFromContext(c), telemetry.AuditPayload{
		Action:  "group_participants_added",
		Subject: group.ID,
	})
	c.JSON(http.StatusOK, group)
}

// RemoveParticipant handles DELETE /groups/:group_id/participants/:user_id.
func (h *GroupHandler) RemoveParticipant(c *gin.Context) {
	targetID := strings.TrimSpace(c.Param("user_id"))
	group, err := h.groups.RemoveParticipant(c.Request.Context(), c.Param("group_id"), middleware.UserID(c), targetID)
	if err != nil {
		writeError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), requestIDFromContext(c), userIDFromContext(c), telemetry.AuditPayload{
		Action:  "group_participant_removed",
		Subject: targetID,
	})
	c.JSON(http.StatusOK, group)
}

// PromoteAdmin handles POST /groups/:group_id/admins/:user_id.
func (h *GroupHandler) PromoteAdmin(c *gin.Context) {
	targetID := strings.TrimSpace(c.Param("user_id"))
	group, err := h.groups.PromoteAdmin(c.Request.Context(), c.Param("group_id"), middleware.UserID(c), targetID)
	if err != nil {
		writeError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), requestIDFromContext(c), userIDFromContext(c), telemetry.AuditPayload{
		Action:  "group_admin_promoted",
		Subject: targetID,
	})
	c.JSON(http.StatusOK, group)
}

// LeaveGroup handles POST /groups/:group_id/leave.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	if err := h.groups.Leave(c.Request.Context(), c.Param("group_id"), middleware.UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
