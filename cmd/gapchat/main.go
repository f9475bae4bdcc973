package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"gapchat/internal/auth"
	"gapchat/internal/cache/adapter"
	"gapchat/internal/cache/port"
	"gapchat/internal/db"
	"gapchat/internal/handlers"
	"gapchat/internal/push"
	"gapchat/internal/queue"
	"gapchat/internal/realtime"
	"gapchat/internal/store"
	"gapchat/internal/sync"
	"gapchat/internal/ws"
	"gapchat/pkg/config"
)

func rateLimitMiddleware(limiterInstance *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		limiterContext, err := limiterInstance.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": __("rate limiter error")})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limiterContext.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", limiterContext.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", limiterContext.Reset))

		if limiterContext.Reached {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": __("rate limit exceeded")})
			c.Abort()
			return
		}

		c.Next()
	}
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseBodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w responseBodyWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func serverErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		blw := &responseBodyWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Printf(
				"HTTP %d %s %s ip=%s duration=%s errors=%q response=%q",
				c.Writer.Status(),
				c.Request.Method,
				c.Request.URL.Path,
				c.ClientIP(),
				time.Since(start).Truncate(time.Millisecond),
				c.Errors.ByType(gin.ErrorTypeAny).String(),
				strings.TrimSpace(blw.body.String()),
			)
		}
	}
}

func panicRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Printf(
			"panic recovered method=%s path=%s ip=%s error=%v\n%s",
			c.Request.Method,
			c.Request.URL.Path,
			c.ClientIP(),
			recovered,
			debug.Stack(),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": __("internal server error")})
	})
}

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 {
		if err := runCommand(cfg, os.Args[1:]); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := runServer(cfg); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func runCommand(cfg *config.Config, args []string) error {
	command := args[0]

	switch command {
	case "status":
		return runStatus(cfg, os.Stdout, args[1:])
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(out *os.File) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  gapchat           Start the web server")
	fmt.Fprintln(out, "  gapchat status    Show application statistics")
	fmt.Fprintln(out, "  gapchat status --json")
}

func runServer(cfg *config.Config) error {
	os.MkdirAll(cfg.FileStoragePath, 0755)

	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := realtime.NewFeed()
	st := store.New(database.GetConn(), feed)

	var requestCache port.Cache
	if cfg.RedisURL != "" {
		redisCache, err := adapter.NewRedisCache(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisCache.Close()
		requestCache = redisCache
	} else {
		requestCache = adapter.NewMemoryCache()
	}

	authSvc := auth.New(database.GetConn(), cfg.JWTSecret)
	typing := sync.NewTyping(st)
	presence := sync.NewPresence(st)
	messages := sync.NewMessages(st)
	go messages.Run(ctx)
	conversations := sync.NewConversations(st, requestCache)
	go conversations.Run(ctx)

	hub := ws.NewHub(st, typing, presence)
	go hub.Run(ctx)

	notifier := push.NewNotifier(st, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)

	var dispatcher *queue.Dispatcher
	if cfg.RedisURL != "" && notifier != nil {
		dispatcher, err = queue.NewDispatcher(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to initialize queue: %w", err)
		}
		defer dispatcher.Close()

		worker, err := queue.NewWorker(cfg.RedisURL, notifier)
		if err != nil {
			return fmt.Errorf("failed to initialize queue worker: %w", err)
		}
		if err := worker.Start(); err != nil {
			return err
		}
		defer worker.Shutdown()
	}

	authHandler := handlers.NewAuthHandler(authSvc)
	msgHandler := handlers.NewMessageHandler(st, messages, conversations, typing, presence,
		dispatcher, notifier, cfg.FileStoragePath, cfg.MaxUploadSize)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(serverErrorLogger())
	router.Use(gin.Logger())
	router.Use(panicRecovery())
	router.MaxMultipartMemory = cfg.MaxUploadSize

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigins)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := router.Group("/api")
	{
		loginLimiter := limiter.New(memory.NewStore(), limiter.Rate{Period: time.Minute, Limit: 5})
		registerLimiter := limiter.New(memory.NewStore(), limiter.Rate{Period: time.Minute, Limit: 2})

		api.POST("/auth/register", rateLimitMiddleware(registerLimiter), authHandler.Register)
		api.POST("/auth/login", rateLimitMiddleware(loginLimiter), authHandler.Login)

		// Public profile endpoint
		api.GET("/users/:username", msgHandler.GetUserProfile)
	}

	protected := api.Group("")
	protected.Use(authHandler.AuthMiddleware())
	{
		// Conversations
		protected.GET("/conversations", msgHandler.GetConversations)
		protected.POST("/conversations", msgHandler.StartConversation)
		protected.GET("/conversations/:id/messages", msgHandler.GetMessages)
		protected.POST("/conversations/:id/read", msgHandler.MarkConversationRead)
		protected.GET("/conversations/:id/typing", msgHandler.GetTyping)
		protected.PUT("/conversations/:id/typing", msgHandler.UpdateTyping)

		// Messages
		protected.POST("/messages", msgHandler.SendMessage)
		protected.PUT("/messages/:id", msgHandler.EditMessage)

		// Presence
		protected.GET("/presence", msgHandler.GetPresence)
		protected.POST("/presence/heartbeat", msgHandler.Heartbeat)
		protected.PUT("/presence/visibility", msgHandler.UpdateVisibility)
		protected.POST("/presence/beacon", msgHandler.Beacon)

		// Users and profile
		protected.GET("/users", msgHandler.GetUsers)
		protected.GET("/profile", msgHandler.GetMyProfile)
		protected.PUT("/profile", msgHandler.UpdateProfile)
		protected.POST("/profile/avatar", msgHandler.UploadAvatar)

		// Uploads
		protected.POST("/upload", msgHandler.UploadFile)

		// Web push
		protected.POST("/push/subscribe", msgHandler.SubscribePush)
		protected.GET("/push/vapid-key", msgHandler.GetVAPIDKey)
	}

	// Serve uploaded files from configured storage path
	router.Static("/api/files", cfg.FileStoragePath)

	// WebSocket endpoint
	router.GET("/ws", authHandler.AuthMiddleware(), hub.HandleWebSocket)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	addr := fmt.Sprintf("0.0.0.0:%s", cfg.Port)
	log.Printf("Starting server on %s", addr)

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigint
		log.Println("\nShutting down gracefully...")
		cancel()
		database.Close()
		os.Exit(0)
	}()

	if err := router.Run(addr); err != nil {
		return err
	}

	return nil
}
