package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/kvstore"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

func newBlockRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewBlockHandler(repositories.NewBlockRegistry(kvstore.NewMemoryStore()), telemetry.NewAuditEmitter(nil, "", "", ""))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", c.GetHeader("X-User-Id"))
		c.Next()
	})
	r.GET("/blocks", handler.ListBlocked)
	r.PUT("/blocks/:user_id", handler.Block)
	r.DELETE("/blocks/:user_id", handler.Unblock)
	return r
}

func doBlocks(t *testing.T, r *gin.Engine, method, path, user string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-User-Id", user)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestBlockUnblockLifecycle(t *testing.T) {
	router := newBlockRouter(t)

	rec := doBlocks(t, router, http.MethodPut, "/blocks/bob", "alice")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doBlocks(t, router, http.MethodGet, "/blocks", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Blocked []string `json:"blocked"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"bob"}, resp.Blocked)

	rec = doBlocks(t, router, http.MethodDelete, "/blocks/bob", "alice")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doBlocks(t, router, http.MethodGet, "/blocks", "alice")
	resp.Blocked = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Blocked)
}

func TestBlockSelfRejected(t *testing.T) {
	router := newBlockRouter(t)

	rec := doBlocks(t, router, http.MethodPut, "/blocks/alice", "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
