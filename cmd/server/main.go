package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arlomb/cardbridge/internal/api"
	"github.com/arlomb/cardbridge/internal/config"
	"github.com/arlomb/cardbridge/internal/db"
	"github.com/arlomb/cardbridge/internal/logger"
	"github.com/arlomb/cardbridge/internal/repository/sqlite"
	"github.com/arlomb/cardbridge/internal/services"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("CardBridge Server Starting")
	log.Info("===========================================")

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration: %v", err)
		os.Exit(1)
	}
	log.Info("configuration loaded")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("import_source=%s", cfg.ImportSource)
	log.Debug("max_archive_bytes=%d", cfg.MaxArchiveBytes)
	log.Debug("due_card_limit=%d", cfg.DueCardLimit)

	// Open database
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	// Initialize repositories
	deckRepo := sqlite.NewDeckRepository(database.DB)
	cardRepo := sqlite.NewCardRepository(database.DB)
	mappingRepo := sqlite.NewMappingRepository(database.DB)
	mediaRepo := sqlite.NewMediaRepository(database.DB)

	// Initialize services
	importService := services.NewImportService(deckRepo, cardRepo, mappingRepo, mediaRepo,
		cfg.ImportSource, cfg.MaxArchiveBytes)
	exportService := services.NewExportService(deckRepo, cardRepo, mappingRepo, mediaRepo,
		cfg.ImportSource)
	deckService := services.NewDeckService(deckRepo, cardRepo)
	reviewService := services.NewReviewService(deckRepo, cardRepo, cfg.DueCardLimit)

	srv := &api.Server{
		Config:  &cfg,
		DB:      database.DB,
		Imports: importService,
		Exports: exportService,
		Decks:   deckService,
		Reviews: reviewService,
	}

	// Configure HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server
	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Info("===========================================")
	log.Info("CardBridge Server Stopped")
	log.Info("===========================================")
}
