package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/service/friends"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Services are the collaborators the HTTP layer dispatches to.
type Services struct {
	Auth       *auth.Service
	Store      store.Store
	Admissions *core.Admissions
	Gate       *core.Gate
	Ingestor   *core.Ingestor
	Friends    *friends.Service
	// Limiter is optional; nil disables rate limiting.
	Limiter *RateLimiter
	// Streams is optional; nil gives the server a private tracker.
	Streams *Streams
}

// NewServer builds an HTTP server with all routes. Room streams are served
// by a plain mux in front of the gin router, since they hijack the
// connection.
func NewServer(svc Services, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	if svc.Streams == nil {
		svc.Streams = NewStreams()
	}

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger), CORSMiddleware())
	if svc.Limiter != nil {
		router.Use(svc.Limiter.Middleware(logger))
	}

	router.GET("/health", healthHandler)

	authMW := AuthMiddleware(svc.Auth, logger)

	apiHandlers := NewAPIHandlers(svc.Auth, logger)
	roomHandlers := NewRoomHandlers(svc.Store, logger)
	messageHandlers := NewMessageHandlers(svc.Store, svc.Ingestor, logger)
	friendsHandlers := NewFriendsHandlers(svc.Friends, logger)
	wsHandlers := NewWSHandlers(svc.Store, svc.Admissions, svc.Gate, cfg.WSOriginPatterns, svc.Streams, logger)

	api := router.Group("/api")
	api.POST("/register", RegistrationGuard(cfg.AllowRegistration), apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	protected := api.Group("", authMW)
	protected.GET("/validate-token", apiHandlers.ValidateToken)

	protected.GET("/rooms", roomHandlers.ListRooms)
	protected.POST("/rooms", roomHandlers.CreateRoom)
	protected.POST("/rooms/:room_uuid/members", roomHandlers.AddMember)

	protected.GET("/messages/:room_uuid", messageHandlers.ListMessages)
	protected.POST("/messages/:room_uuid", messageHandlers.PostMessage)

	protected.GET("/friends", friendsHandlers.ListFriends)
	protected.GET("/friends/requests", friendsHandlers.ListRequests)
	protected.POST("/friends/request", friendsHandlers.SendRequest)
	protected.POST("/friends/accept", friendsHandlers.AcceptRequest)

	router.GET("/ws/issue-token/rooms/:room_uuid", authMW, wsHandlers.IssueToken)

	var stream stdhttp.Handler = stdhttp.HandlerFunc(wsHandlers.Stream)
	if svc.Limiter != nil {
		stream = svc.Limiter.Wrap(stream, logger)
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("GET /ws/rooms/{room_uuid}", stream)
	mux.Handle("/", router)

	srv := &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	srv.RegisterOnShutdown(svc.Streams.stop)
	return srv
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
