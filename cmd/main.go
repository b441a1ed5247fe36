package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"newscard/internal/bot"
	"newscard/internal/config"
	"newscard/internal/files"
	"newscard/internal/handlers"
	"newscard/internal/image"
	"newscard/internal/server"
	"newscard/internal/services"
	"newscard/internal/storage"
)

func main() {
	logger := log.Default()
	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal(err)
	}

	catalog, err := storage.OpenCatalog(cfg.CatalogFile)
	if err != nil {
		logger.Fatal(err)
	}

	fonts, err := image.NewFontRegistry()
	if err != nil {
		logger.Fatal(err)
	}
	if n, err := fonts.LoadDir(cfg.FontsDir); err != nil {
		logger.Printf("[WARN]: %v. Using built-in fonts only", err)
	} else {
		logger.Printf("Loaded %d fonts from %s", n, cfg.FontsDir)
	}

	loader := files.NewLoader(cfg.AssetsDir, cfg.FetchTimeout, cfg.MaxFileSize)
	compositor := image.NewCompositor(loader, logger, cfg.Prefetch)
	cardService := services.NewCardService(catalog, compositor, fonts, cfg.WatermarkURL, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           server.New(cardService, catalog, cfg.PremiumKeys, logger).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Printf("HTTP server listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.BotToken != "" {
		botService, err := bot.NewTelegramBot(cfg.BotToken, logger, cfg.MaxFileSize)
		if err != nil {
			logger.Fatal(err)
		}
		fileManager := files.NewTelegramFileManager(botService, cfg.MaxFileSize, cfg.FetchTimeout)
		cardHandler := handlers.NewCardHandler(
			cardService,
			catalog,
			botService,
			fileManager,
			storage.NewRenderStateStore(),
			cfg.TempDir,
			logger,
		)
		g.Go(func() error {
			if err := botService.Start(ctx, cardHandler.HandleUpdate); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("bot: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Printf("Error: %v", err)
	}
	fmt.Println("\nShutting down...")
}
