package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"house-price-chatbot/internal/api"
	"house-price-chatbot/internal/config"
	"house-price-chatbot/internal/core"
	"house-price-chatbot/internal/store"
)

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(level, "DEBUG") {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func main() {
	// Load configuration
	config.LoadConfig()

	logger, err := newLogger(config.AppConfig.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Command line flag for location ingestion
	ingestFlag := flag.String("ingest", "", "Import supported locations from the given training CSV and exit")
	flag.Parse()

	// Initialize the JSON file stores
	dataDir := config.AppConfig.DataDir
	conversations, err := store.NewConversationStore(filepath.Join(dataDir, "conversations.json"))
	if err != nil {
		logger.Fatal("failed to initialize conversation store", zap.Error(err))
	}
	houses, err := store.NewHouseStore(filepath.Join(dataDir, "houses.json"))
	if err != nil {
		logger.Fatal("failed to initialize house store", zap.Error(err))
	}
	locations, err := store.NewLocationStore(filepath.Join(dataDir, "locations.json"), logger)
	if err != nil {
		logger.Fatal("failed to initialize location store", zap.Error(err))
	}

	// Handle location ingestion if the flag is set
	if *ingestFlag != "" {
		count, err := locations.ImportCSV(*ingestFlag)
		if err != nil {
			logger.Fatal("location import failed", zap.Error(err))
		}
		logger.Info("location import complete, exiting", zap.Int("locations", count))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := locations.Watch(ctx); err != nil {
		logger.Warn("could not watch locations file", zap.Error(err))
	}

	// Initialize services
	llmService, err := core.NewLLMService(logger)
	if err != nil {
		logger.Fatal("failed to create LLM service", zap.Error(err))
	}
	defer llmService.Close()

	priceService := core.NewPriceService(config.AppConfig.ModelPath)
	chatService := core.NewChatService(conversations, houses, locations, priceService, llmService, logger)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, priceService, locations, houses, logger)
	router := api.NewRouter(apiHandler, logger)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give active connections time to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting gracefully")
}
