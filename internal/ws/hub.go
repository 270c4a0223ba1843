package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// Hub maintains active websocket rooms keyed by conversation key.
type Hub struct {
	rooms    map[string]map[*websocket.Conn]bool
	connInfo map[string]map[*websocket.Conn]ConnInfo
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*websocket.Conn]bool),
		connInfo: make(map[string]map[*websocket.Conn]ConnInfo),
	}
}

// AddClient registers a websocket connection to a conversation room.
func (h *Hub) AddClient(key string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[key]; !ok {
		h.rooms[key] = make(map[*websocket.Conn]bool)
	}
	h.rooms[key][conn] = true
	if _, ok := h.connInfo[key]; !ok {
		h.connInfo[key] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[key][conn] = info
}

// RemoveClient removes a websocket connection from a conversation room.
func (h *Hub) RemoveClient(key string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[key]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, key)
		}
	}
	if infos, ok := h.connInfo[key]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, key)
		}
	}
}

// BroadcastMessage sends a new message to all clients in a conversation.
func (h *Hub) BroadcastMessage(kind, key string, msg models.Message) {
	h.broadcast(kind, key, models.Event{Type: "message", Message: &msg})
}

// BroadcastEdit sends an edited message to all clients in a conversation.
func (h *Hub) BroadcastEdit(kind, key string, msg models.Message) {
	h.broadcast(kind, key, models.Event{Type: "edit", Message: &msg})
}

// BroadcastDeletion notifies clients of a delete-for-everyone event.
func (h *Hub) BroadcastDeletion(kind, key, messageID string) {
	h.broadcast(kind, key, models.Event{Type: "delete_for_all", MessageID: messageID})
}

// BroadcastStatus notifies clients of a delivery status change.
func (h *Hub) BroadcastStatus(kind, key, messageID, status string) {
	h.broadcast(kind, key, models.Event{Type: "status", MessageID: messageID, Status: status})
}

func (h *Hub) broadcast(kind, key string, event models.Event) {
	// Snapshot the room so a concurrent AddClient/RemoveClient cannot
	// mutate the map mid-iteration.
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[key]))
	for conn := range h.rooms[key] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveClient(key, conn)
			h.publishWSError(kind, key, conn, err)
		}
	}
}

func (h *Hub) publishWSError(kind, key string, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(key, conn)
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":             kind,
			"conversation_key": key,
			"event":            "ws_error",
			"conn_id":          info.ConnID,
			"duration_ms":      time.Since(info.ConnectedAt).Milliseconds(),
			"reason":           err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(kind, "ws_error")
}

func (h *Hub) getConnInfo(key string, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.connInfo[key]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}

func wsRoutingKey(kind string) string {
	if kind == "group" {
		return "ws_events.groups"
	}
	return "ws_events.chats"
}
