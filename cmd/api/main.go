package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docgpt-backend/cmd"
	"docgpt-backend/internal/api"
	"docgpt-backend/internal/auth"
	"docgpt-backend/internal/chat"
	"docgpt-backend/internal/config"
	"docgpt-backend/internal/database"
	"docgpt-backend/internal/llm"
	"docgpt-backend/internal/loaders"
	"docgpt-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	log.Println("Starting DocGPT server...")

	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	store := database.NewStore(db)

	provider, err := cmd.NewUploadProvider(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to create upload storage: %v", err)
	}
	uploads := storage.NewUploads(provider)
	if err := uploads.Init(context.Background()); err != nil {
		log.Fatalf("Failed to initialize upload storage: %v", err)
	}

	documents, err := loaders.NewDefaultDispatcher(loaders.Config{
		SiteAttempts:    cfg.SiteAttempts,
		SiteRetryDelay:  cfg.SiteRetryDelay,
		FetchTimeout:    cfg.FetchTimeout,
		YoutubeLanguage: cfg.YoutubeLanguage,
		PdfParser:       cfg.PdfParser,
		StagingDir:      os.TempDir(),
	})
	if err != nil {
		log.Fatalf("Failed to create document loaders: %v", err)
	}

	agents, err := llm.NewFactory(llm.Config{
		Backend:  cfg.AgentBackend,
		Model:    cfg.AgentModel,
		Endpoint: cfg.ProviderEndpoint,
	})
	if err != nil {
		log.Fatalf("Failed to create agent factory: %v", err)
	}

	if _, err := config.ProviderKey(cfg.ProviderKeyEnv); err != nil {
		log.Printf("Warning: %v; chats cannot be opened until it is set", err)
	}

	manager := chat.NewManager(store, documents, uploads, agents, chat.ManagerConfig{
		ProviderKeyEnv: cfg.ProviderKeyEnv,
		Model:          cfg.AgentModel,
		CacheSize:      cfg.SessionCacheSize,
	})

	authService := auth.NewService(store, cfg.SessionSecret, cfg.SessionTTL)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(api.CORS(cfg.AllowedOrigins))

	apiHandler := api.NewService(authService, manager, cfg.SecureCookies)
	apiHandler.AddRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.Port, err)
	}

	log.Println("Server stopped.")
}
