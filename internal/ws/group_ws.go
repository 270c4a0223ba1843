package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// GroupWebSocketHandler handles group conversation websocket connections.
type GroupWebSocketHandler struct {
	hub    *Hub
	groups repositories.GroupRegistry
}

// NewGroupWebSocketHandler constructs a GroupWebSocketHandler.
func NewGroupWebSocketHandler(hub *Hub, groups repositories.GroupRegistry) *GroupWebSocketHandler {
	return &GroupWebSocketHandler{hub: hub, groups: groups}
}

// Handle upgrades and registers a websocket connection for group chats.
func (h *GroupWebSocketHandler) Handle(c *gin.Context) {
	groupID := strings.TrimSpace(c.Param("group_id"))
	if groupID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	userID := middleware.UserID(c)
	member, err := h.groups.IsMember(c.Request.Context(), groupID, userID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for group"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	key := repositories.GroupKey(groupID)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(key, conn, info)
	observability.IncWSActive("group")
	observability.IncWSEvent("group", "ws_connect")

	go func() {
		defer func() {
			h.hub.RemoveClient(key, conn)
			observability.DecWSActive("group")
			observability.IncWSEvent("group", "ws_disconnect")
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
