package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/beanbot/backend/docs"
	"github.com/beanbot/backend/internal/audit"
	"github.com/beanbot/backend/internal/config"
	"github.com/beanbot/backend/internal/database"
	"github.com/beanbot/backend/internal/handlers"
	mW "github.com/beanbot/backend/internal/middleware"
	"github.com/beanbot/backend/internal/services"
)

// @title Beanbot Ledger API
// @version 1.0
// @description Chat-driven double-entry bookkeeping backend
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	config.Init()
	cfg := config.Load()

	docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port

	store, closeStore := openStore(cfg)
	defer closeStore()

	engine := services.NewLedgerEngine(cfg.Ledger.MergeWindow)
	configService := services.NewConfigService(cfg.Ledger.MaxConfigValues)
	auditLogger := audit.NewAuditLogger()
	bot := services.NewBotService(store, engine, configService, auditLogger)

	voiceService := services.NewVoiceService(context.Background(), cfg.Voice.Enabled, cfg.Voice.LanguageCode)
	defer voiceService.Close()
	if voiceService.Available() {
		log.Println("Voice notes enabled")
	}

	chatHandler := handlers.NewChatHandler(bot, voiceService, auditLogger)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "storage": cfg.StorageDriver})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", chatHandler.Routes)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

// openStore picks the ledger store for the configured driver, falling back to
// memory when the backing service is unreachable.
func openStore(cfg *config.AppConfig) (services.LedgerStore, func()) {
	defaults := cfg.Ledger.Defaults
	noop := func() {}

	switch cfg.StorageDriver {
	case config.StorageRedis:
		if client := database.InitRedis(); client != nil {
			log.Println("[STORE] Using Redis ledger store")
			return database.NewRedisLedgerStore(client, defaults), func() { client.Close() }
		}
	case config.StoragePostgres:
		db, err := database.InitDB()
		if err == nil {
			store := database.NewPostgresLedgerStore(db, defaults)
			if err = store.EnsureSchema(context.Background()); err == nil {
				log.Println("[STORE] Using Postgres ledger store")
				return store, func() { db.Close() }
			}
			db.Close()
		}
		log.Printf("[STORE] Postgres unavailable: %v", err)
	case config.StorageMemory:
	default:
		log.Printf("[STORE] Unknown storage driver %q", cfg.StorageDriver)
	}

	log.Println("[STORE] Using in-memory ledger store, data is lost on restart")
	return database.NewMemoryLedgerStore(defaults), noop
}
