package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/middleware"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// BlockHandler manages the caller's block list.
type BlockHandler struct {
	blocks repositories.BlockRegistry
	audit  *telemetry.AuditEmitter
}

// NewBlockHandler constructs a BlockHandler.
func NewBlockHandler(blocks repositories.BlockRegistry, audit *telemetry.AuditEmitter) *BlockHandler {
	return &BlockHandler{blocks: blocks, audit: audit}
}

// ListBlocked returns the ids the caller has blocked.
func (h *BlockHandler) ListBlocked(c *gin.Context) {
	blocked, err := h.blocks.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": blocked})
}

// Block adds a user to the caller's block list.
func (h *BlockHandler) Block(c *gin.Context) {
	userID := middleware.UserID(c)
	targetID := strings.TrimSpace(c.Param("user_id"))
	if targetID == "" || targetID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.blocks.Block(c.Request.Context(), userID, targetID); err != nil {
		writeError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), requestIDFromContext(c), userIDFromContext(c), telemetry.AuditPayload{
		Action:  "user_blocked",
		Subject: targetID,
	})
	c.Status(http.StatusNoContent)
}

// Unblock removes a user from the caller's block list.
func (h *BlockHandler) Unblock(c *gin.Context) {
	userID := middleware.UserID(c)
	targetID := strings.TrimSpace(c.Param("user_id"))
	if targetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.blocks.Unblock(c.Request.Context(), userID, targetID); err != nil {
		writeError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), requestIDFromContext(c), userIDFromContext(c), telemetry.AuditPayload{
		Action:  "user_unblocked",
		Subject: targetID,
	})
	c.Status(http.StatusNoContent)
}
