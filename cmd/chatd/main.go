package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/cloudbridge/chatcore/internal/config"
	"github.com/cloudbridge/chatcore/internal/policy"
	"github.com/cloudbridge/chatcore/internal/responder"
	"github.com/cloudbridge/chatcore/internal/service"
	"github.com/cloudbridge/chatcore/internal/store"
	"github.com/cloudbridge/chatcore/internal/store/memory"
	"github.com/cloudbridge/chatcore/internal/store/sqlite"
	handler "github.com/cloudbridge/chatcore/internal/transport/http"
	"github.com/cloudbridge/chatcore/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting chat server...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)

	// Initialize stores
	var sessions store.SessionStore
	var messages store.MessageStore
	if cfg.DatabaseURL == "memory" {
		sessions = memory.NewSessionStore()
		messages = memory.NewMessageStore()
	} else {
		db, err := sqlite.NewStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize store: %v", err)
		}
		defer db.Close()
		sessions = db.Sessions()
		messages = db.Messages()
	}

	// Initialize the AI responder
	var resp responder.Responder
	if cfg.AIBaseURL != "" {
		resp = responder.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout)
		log.Printf("AI responder: %s (model %s)", cfg.AIBaseURL, cfg.AIModel)
	} else {
		resp = responder.NewMockClient()
		log.Printf("AI responder: mock (set AI_BASE_URL for a real backend)")
	}

	// Initialize policy engine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize service
	svc := service.New(sessions, messages, resp, policyEngine, cfg)

	// Initialize handlers
	h := handler.NewHandler(svc)
	hub := ws.NewHub()
	wsServer := ws.NewServer(cfg, hub, svc)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	h.RegisterRoutes(e)
	e.GET("/chat/ws", wsServer.HandleWebSocket)

	// Start hub and lifecycle sweep
	go hub.Run()

	lifecycle := service.NewLifecycle(sessions, messages, cfg.SweepInterval, cfg.InactivityTimeout)
	go lifecycle.Run(ctx)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Chat server started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down chat server...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Chat server stopped")
}
