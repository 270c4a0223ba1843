package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/engine"
	"messaging-service/internal/kvstore"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

type chatEnv struct {
	router *gin.Engine
	engine *engine.Engine
	blocks repositories.BlockRegistry
	unread repositories.UnreadCounters
}

func newChatEnv(t *testing.T) *chatEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kv := kvstore.NewMemoryStore()
	blocks := repositories.NewBlockRegistry(kv)
	groups := repositories.NewGroupRegistry(kv, repositories.AddAnyMember)
	unread := repositories.NewUnreadCounters(kv)
	eng := engine.New(repositories.NewConversationStore(kv), blocks, groups, unread, nil)

	handler := NewChatHandler(eng, unread, ws.NewHub(), telemetry.NewAuditEmitter(nil, "", "", ""))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", c.GetHeader("X-User-Id"))
		c.Next()
	})
	r.GET("/chats/:peer/messages", handler.GetMessages)
	r.POST("/chats/:peer/messages", handler.PostMessage)
	r.PUT("/chats/:peer/messages/:message_id", handler.EditMessage)
	r.DELETE("/chats/:peer/messages/:message_id/me", handler.DeleteMessageForMe)
	r.DELETE("/chats/:peer/messages/:message_id/all", handler.DeleteMessageForAll)
	r.GET("/chats/:peer/messages/:message_id/reply", handler.GetReplyContext)
	r.GET("/chats/:peer/unread", handler.GetUnread)
	r.POST("/chats/:peer/read", handler.MarkRead)

	return &chatEnv{router: r, engine: eng, blocks: blocks, unread: unread}
}

func (e *chatEnv) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-User-Id", user)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestPostAndGetMessages(t *testing.T) {
	env := newChatEnv(t)

	rec := env.do(t, http.MethodPost, "/chats/bob/messages", "alice", `{"text":"hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, models.StatusSent, msg.Status)

	rec = env.do(t, http.MethodGet, "/chats/alice/messages", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []engine.RenderedMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "them", resp.Messages[0].Direction)
}

func TestPostMessageEmptyBody(t *testing.T) {
	env := newChatEnv(t)

	rec := env.do(t, http.MethodPost, "/chats/bob/messages", "alice", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessageToSelfRejected(t *testing.T) {
	env := newChatEnv(t)

	rec := env.do(t, http.MethodPost, "/chats/alice/messages", "alice", `{"text":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessageWhileBlockedIsNotSent(t *testing.T) {
	env := newChatEnv(t)
	require.NoError(t, env.blocks.Block(context.Background(), "alice", "bob"))

	rec := env.do(t, http.MethodPost, "/chats/bob/messages", "alice", `{"text":"hi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, models.StatusNotSent, msg.Status)
}

func TestEditMessageByPeerFails(t *testing.T) {
	env := newChatEnv(t)

	rec := env.do(t, http.MethodPost, "/chats/bob/messages", "alice", `{"text":"hi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))

	rec = env.do(t, http.MethodPut, "/chats/alice/messages/"+msg.ID, "bob", `{"text":"changed"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEditMissingMessage(t *testing.T) {
	env := newChatEnv(t)

	rec := env.do(t, http.MethodPut, "/chats/bob/messages/nope", "alice", `{"text":"changed"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteForAllBySenderOnly(t *testing.T) {
	env := newChatEnv(t)

	rec := env.do(t, http.MethodPost, "/chats/bob/messages", "alice", `{"text":"hi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/chats/alice/messages/%s/all", msg.ID), "bob", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/chats/bob/messages/%s/all", msg.ID), "alice", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/chats/alice/messages", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []engine.RenderedMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, models.DeletedPlaceholder, resp.Messages[0].Text)
}

func TestDeleteForMeHidesOnlyForCaller(t *testing.T) {
	env := newChatEnv(t)

	rec := env.do(t, http.MethodPost, "/chats/bob/messages", "alice", `{"text":"hi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/chats/alice/messages/%s/me", msg.ID), "bob", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	var resp struct {
		Messages []engine.RenderedMessage `json:"messages"`
	}
	rec = env.do(t, http.MethodGet, "/chats/alice/messages", "bob", "")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Messages)

	rec = env.do(t, http.MethodGet, "/chats/bob/messages", "alice", "")
	resp.Messages = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Messages, 1)
}

func TestReplyContextEndpoint(t *testing.T) {
	env := newChatEnv(t)

	rec := env.do(t, http.MethodPost, "/chats/bob/messages", "alice", `{"text":"original"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/chats/alice/messages/%s/reply", msg.ID), "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/chats/alice/messages/missing/reply", "bob", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnreadLifecycle(t *testing.T) {
	env := newChatEnv(t)

	rec := env.do(t, http.MethodPost, "/chats/bob/messages", "alice", `{"text":"one"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, "/chats/bob/messages", "alice", `{"text":"two"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/chats/alice/unread", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var unread struct {
		Unread int `json:"unread"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&unread))
	assert.Equal(t, 2, unread.Unread)

	rec = env.do(t, http.MethodPost, "/chats/alice/read", "bob", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/chats/alice/unread", "bob", "")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&unread))
	assert.Zero(t, unread.Unread)
}

func TestGetMessagesResetsUnread(t *testing.T) {
	env := newChatEnv(t)

	rec := env.do(t, http.MethodPost, "/chats/bob/messages", "alice", `{"text":"hi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/chats/alice/messages", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := env.unread.Get(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}
