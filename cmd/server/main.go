package main

import (
	"collaborative-text-editor/auth"
	"collaborative-text-editor/internal/collab"
	"collaborative-text-editor/internal/config"
	"collaborative-text-editor/internal/db"
	"collaborative-text-editor/internal/document"
	"collaborative-text-editor/internal/middleware"
	"collaborative-text-editor/internal/user"
	"collaborative-text-editor/internal/worker"
	"collaborative-text-editor/redis"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database
	database, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("error connecting to db %v", err)
	}
	defer db.Close(database)

	// Migrate database schema
	db.Migrate(database)

	// Seed database with initial data (for development)
	if cfg.Environment == "development" {
		db.SeedData(database)
	}

	// Token store (Redis, degrades gracefully when absent)
	tokens := redis.NewTokenStore(cfg.RedisAddress)
	defer tokens.Close()

	jwt := auth.NewJWT(cfg.JWTSecret, cfg.TokenTTL)

	// Repositories
	userRepo := user.NewRepository(database)
	docRepo := document.NewRepository(database)

	// Services
	userService := user.NewService(userRepo)

	// Collaboration layer: registries are plain owned state, one instance
	// per process, injected into the coordinator.
	registry := collab.NewRegistry()
	rooms := collab.NewRooms()
	presence := collab.NewPresence(cfg.CursorStaleThreshold)
	pool := worker.NewPool(cfg.PersistWorkers)
	gate := collab.NewGate(docRepo)
	coordinator := collab.NewCoordinator(docRepo, userService, gate, registry, rooms, presence, pool)
	hub := collab.NewHub(coordinator, registry, jwt, tokens, cfg.CursorSweepInterval)
	go hub.Run()

	// Handlers
	userHandler := user.NewHandler(userService, jwt, tokens, cfg.TokenTTL)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(middleware.ErrorHandler())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}

	if cfg.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{cfg.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	// Auth routes
	router.POST("/api/auth/register", userHandler.Register)
	router.POST("/api/auth/login", userHandler.Login)
	router.DELETE("/api/auth/logout", auth.Middleware(jwt, tokens), userHandler.Logout)
	router.GET("/api/auth/profile", auth.Middleware(jwt, tokens), userHandler.GetProfile)

	// Health check
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Websocket endpoint; authentication happens in-band via the
	// authenticate event.
	router.GET("/ws", hub.ServeWS)

	// Server configuration
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Printf("Server listening on port %s", cfg.ServerPort)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	hub.Stop()
	pool.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Println("Server shutdown error:", err)
	}

	log.Println("Server shutdown complete")
}
