package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/evanmori/neighborlink/internal/app"
	iauth "github.com/evanmori/neighborlink/internal/auth"
	"github.com/evanmori/neighborlink/internal/handlers"
	"github.com/evanmori/neighborlink/internal/middleware"
	"github.com/evanmori/neighborlink/internal/realtime"
	"github.com/evanmori/neighborlink/internal/services"
)

// NewRouter builds the Gin engine, wires middleware, and registers all routes.
// The hub doubles as the broadcaster handed to the domain services; the
// notification service is the single consumer of domain events.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, hub *realtime.Hub) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if hub == nil {
		return nil, fmt.Errorf("realtime hub must be provided")
	}

	notifications, err := services.NewNotificationService(db, hub)
	if err != nil {
		return nil, err
	}
	assignments, err := services.NewAssignmentService(db, notifications, hub)
	if err != nil {
		return nil, err
	}
	chats, err := services.NewChatService(db, notifications, hub)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	r.NoRoute(middleware.NotFoundHandler)

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// Chat attachments are public once the random filename is known.
	r.Static("/uploads", cfg.Uploads.Dir)

	authHandler, err := handlers.NewAuthHandler(db, jwt)
	if err != nil {
		return nil, err
	}
	postHandler, err := handlers.NewPostHandler(db)
	if err != nil {
		return nil, err
	}
	commentHandler, err := handlers.NewCommentHandler(db, notifications)
	if err != nil {
		return nil, err
	}
	assignmentHandler := handlers.NewAssignmentHandler(assignments)
	chatHandler := handlers.NewChatHandler(chats, cfg.Uploads.Dir)
	notificationHandler := handlers.NewNotificationHandler(notifications)
	realtimeHandler := handlers.NewRealtimeHandler(hub)

	requireAuth := middleware.Auth(jwt)

	v1 := r.Group("/api/v1")

	// Public auth routes
	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)

	// Public board reads
	v1.GET("/posts", postHandler.List)
	v1.GET("/posts/:id", postHandler.Get)
	v1.GET("/posts/:id/comments", commentHandler.List)
	v1.GET("/users/:id", authHandler.GetUser)

	// Everything else requires authentication.
	private := v1.Group("")
	private.Use(requireAuth)

	private.GET("/auth/me", authHandler.Me)
	private.PUT("/auth/me", authHandler.UpdateProfile)

	private.POST("/posts", postHandler.Create)
	private.PUT("/posts/:id", postHandler.Update)
	private.DELETE("/posts/:id", postHandler.Delete)

	private.POST("/posts/:id/comments", commentHandler.Create)
	private.DELETE("/comments/:commentID", commentHandler.Delete)

	private.POST("/posts/:id/assignments", assignmentHandler.Claim)
	private.GET("/posts/:id/assignments", assignmentHandler.ListForPost)
	private.GET("/assignments/mine", assignmentHandler.Mine)
	private.GET("/assignments/:id", assignmentHandler.Get)
	private.PUT("/assignments/:id/decision", assignmentHandler.Decide)
	private.PUT("/assignments/:id/status", assignmentHandler.UpdateStatus)
	private.POST("/assignments/:id/review", assignmentHandler.Review)

	private.GET("/assignments/:id/chat", chatHandler.Get)
	private.POST("/assignments/:id/chat/messages", chatHandler.SendMessage)
	private.PUT("/assignments/:id/chat/read", chatHandler.MarkRead)
	private.GET("/chats", chatHandler.List)
	private.GET("/chats/unread-count", chatHandler.UnreadCount)
	private.POST("/chats/upload", chatHandler.Upload)

	private.GET("/notifications", notificationHandler.List)
	private.GET("/notifications/unread-count", notificationHandler.UnreadCount)
	private.PUT("/notifications/:id/read", notificationHandler.MarkRead)
	private.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
	private.DELETE("/notifications/:id", notificationHandler.Delete)

	// Realtime push channel
	private.GET("/ws", realtimeHandler.Serve)

	return r, nil
}
