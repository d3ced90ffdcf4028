package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/arjunmehta/medilens/internal/config"
	"github.com/arjunmehta/medilens/internal/logger"
	"github.com/arjunmehta/medilens/internal/notify"
	"github.com/arjunmehta/medilens/internal/server"
	"github.com/arjunmehta/medilens/internal/services"
	"github.com/arjunmehta/medilens/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting MediLens scan engine...")

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if err := logger.InitWithConfig(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	}); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewRedisStore(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", "error", err)
	}
	defer store.Close()

	aiService, err := services.NewAIService(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create AI service", "error", err)
	}

	gateway := notify.NewLocalGateway(true)
	fraudService := services.NewFraudService()
	normalizer := services.NewNormalizerService(fraudService)
	interactions := services.NewInteractionService(aiService)
	reminders := services.NewReminderService(gateway, services.DefaultTones(), nil)
	translations := services.NewTranslationService(aiService, cfg.SourceLanguage)
	scans := services.NewScanService(aiService, normalizer, interactions, reminders, store)
	logger.Info("Services initialized")

	srv := server.New(scans, reminders, translations)
	go func() {
		if err := srv.Start(":" + cfg.HTTPPort); err != nil {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
}
