package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/config"
	"messaging-service/internal/engine"
	"messaging-service/internal/handlers"
	"messaging-service/internal/kvstore"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func main() {
	cfg := config.Load()

	shutdownTracing, err := observability.InitTracing(context.Background(), "messaging-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	kv, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	log.Printf("audit publisher mode=%s reason=%q", rabbitmq.PublisherMode(auditPublisher), rabbitmq.PublisherNoopReason(auditPublisher))
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit_log.messaging", "messaging-service", cfg.Environment)

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.EventExchange); err != nil {
		log.Printf("ws event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	conversations := repositories.NewConversationStore(kv)
	blocks := repositories.NewBlockRegistry(kv)
	groups := repositories.NewGroupRegistry(kv, repositories.ParseAddPolicy(cfg.GroupAddPolicy))
	unread := repositories.NewUnreadCounters(kv)

	hub := ws.NewHub()
	simulator := engine.NewDeliverySimulator(cfg.SeenDelay, hubNotifier{hub})
	eng := engine.New(conversations, blocks, groups, unread, simulator)
	simulator.Bind(eng)

	chatHandler := handlers.NewChatHandler(eng, unread, hub, audit)
	groupHandler := handlers.NewGroupHandler(eng, groups, hub, audit)
	blockHandler := handlers.NewBlockHandler(blocks, audit)

	chatWS := ws.NewChatWebSocketHandler(hub, eng)
	groupWS := ws.NewGroupWebSocketHandler(hub, groups)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("messaging-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	session := middleware.Session()

	router.GET("/chats/:peer/messages", session, chatHandler.GetMessages)
	router.POST("/chats/:peer/messages", session, chatHandler.PostMessage)
	router.PUT("/chats/:peer/messages/:message_id", session, chatHandler.EditMessage)
	router.DELETE("/chats/:peer/messages/:message_id/me", session, chatHandler.DeleteMessageForMe)
	router.DELETE("/chats/:peer/messages/:message_id/all", session, chatHandler.DeleteMessageForAll)
	router.GET("/chats/:peer/messages/:message_id/reply", session, chatHandler.GetReplyContext)
	router.GET("/chats/:peer/unread", session, chatHandler.GetUnread)
	router.POST("/chats/:peer/read", session, chatHandler.MarkRead)

	router.GET("/blocks", session, blockHandler.ListBlocked)
	router.PUT("/blocks/:user_id", session, blockHandler.Block)
	router.DELETE("/blocks/:user_id", session, blockHandler.Unblock)

	router.POST("/groups", session, groupHandler.CreateGroup)
	router.GET("/groups", session, groupHandler.ListGroups)
	router.GET("/groups/:group_id", session, groupHandler.GetGroup)
	router.GET("/groups/:group_id/messages", session, groupHandler.GetMessages)
	router.POST("/groups/:group_id/messages", session, groupHandler.PostMessage)
	router.PUT("/groups/:group_id/messages/:message_id", session, groupHandler.EditMessage)
	router.DELETE("/groups/:group_id/messages/:message_id/me", session, groupHandler.DeleteMessageForMe)
	router.DELETE("/groups/:group_id/messages/:message_id/all", session, groupHandler.DeleteMessageForAll)
	router.GET("/groups/:group_id/messages/:message_id/reply", session, groupHandler.GetReplyContext)
	router.POST("/groups/:group_id/participants", session, groupHandler.AddParticipants)
	router.DELETE("/groups/:group_id/participants/:user_id", session, groupHandler.RemoveParticipant)
	router.POST("/groups/:group_id/admins/:user_id", session, groupHandler.PromoteAdmin)
	router.POST("/groups/:group_id/leave", session, groupHandler.LeaveGroup)

	router.GET("/ws/chats/:peer", session, chatWS.Handle)
	router.GET("/ws/groups/:group_id", session, groupWS.Handle)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()
	log.Printf("listening on :%s store=%s", cfg.Port, cfg.StoreBackend)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	simulator.Close()
	if err := auditPublisher.Close(); err != nil {
		log.Printf("audit publisher close: %v", err)
	}
	if err := kv.Close(); err != nil {
		log.Printf("store close: %v", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}

func openStore(cfg config.Config) (kvstore.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return kvstore.NewMemoryStore(), nil
	case "postgres":
		return kvstore.ConnectPostgres(cfg.PostgresDSN)
	default:
		return kvstore.OpenPebble(cfg.PebblePath)
	}
}

// hubNotifier fans delivery status changes out to websocket rooms.
type hubNotifier struct {
	hub *ws.Hub
}

func (n hubNotifier) MessageSeen(conv engine.Conversation, msg models.Message) {
	n.hub.BroadcastStatus("chat", conv.Key, msg.ID, msg.Status)
}
