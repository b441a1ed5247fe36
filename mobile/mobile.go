package mobile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"newscard/internal/bot"
	"newscard/internal/files"
	"newscard/internal/handlers"
	"newscard/internal/image"
	"newscard/internal/services"
	"newscard/internal/storage"
)

const maxFileSize = 50 * 1024 * 1024

type BotControl struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewBotControl() *BotControl {
	return &BotControl{}
}

// StartBot runs the card bot against the catalog.yaml and fonts/ found in
// assetsDir.
func (bc *BotControl) StartBot(token string, assetsDir string, tempDir string) string {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if bc.cancel != nil {
		return "Bot already started"
	}

	logger := log.Default()

	catalog, err := storage.OpenCatalog(filepath.Join(assetsDir, "catalog.yaml"))
	if err != nil {
		return fmt.Sprintf("Error opening catalog: %v", err)
	}
	fonts, err := image.NewFontRegistry()
	if err != nil {
		return fmt.Sprintf("Error loading fonts: %v", err)
	}
	if _, err := fonts.LoadDir(filepath.Join(assetsDir, "fonts")); err != nil {
		logger.Printf("[WARN]: %v. Using built-in fonts only", err)
	}

	botService, err := bot.NewTelegramBot(token, logger, maxFileSize)
	if err != nil {
		return fmt.Sprintf("Error creating bot: %v", err)
	}

	loader := files.NewLoader(assetsDir, 15*time.Second, maxFileSize)
	cardService := services.NewCardService(catalog, image.NewCompositor(loader, logger, 2), fonts, "", logger)
	cardHandler := handlers.NewCardHandler(
		cardService,
		catalog,
		botService,
		files.NewTelegramFileManager(botService, maxFileSize, 30*time.Second),
		storage.NewRenderStateStore(),
		tempDir,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	bc.cancel = cancel

	go func() {
		log.Println("Bot goroutine started")
		if err := botService.Start(ctx, cardHandler.HandleUpdate); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Error starting bot: %v", err)
			bc.mu.Lock()
			bc.cancel = nil
			bc.mu.Unlock()
		}
	}()

	return "Bot started successfully"
}

func (bc *BotControl) StopBot() {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if bc.cancel != nil {
		bc.cancel()
		bc.cancel = nil
		log.Println("Bot stopped by user")
	}
}
