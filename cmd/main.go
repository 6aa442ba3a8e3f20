package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"xray-review/config"
	"xray-review/internal/api/telegram"
	"xray-review/internal/api/web"
	app "xray-review/internal/application"
	"xray-review/internal/container"
	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/port"
	"xray-review/internal/infrastructure/inference"
	"xray-review/internal/infrastructure/storage"
	"xray-review/internal/infrastructure/vision"
	"xray-review/internal/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)
	logger := log.With("component", "main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Клиент сервиса инференса: анализ и отчёты всегда удалённые
	client := inference.NewClient(cfg.InferenceURL, cfg.RequestTimeout)

	var segmenter port.Segmenter = client
	if cfg.Segmenter == config.SegmenterLocal {
		segmenter = vision.NewLocalSegmenter()
		logger.Info("using local segmenter")
	}

	// Создаём хранилище пользователей; бот ходит в сервисы с токеном из конфига
	userRepo := storage.NewMemoryUserRepository(entity.Credentials{Token: cfg.ServiceToken})

	// Собираем сервисы приложения
	appContainer := container.New(container.Deps{
		Users:     userRepo,
		Segmenter: segmenter,
		Analyzer:  client,
		Reports:   client,
	}, app.ReviewConfig{
		PreviewWidth: cfg.PreviewWidth,
		SessionTTL:   cfg.SessionTTL,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		appContainer.ReviewService.Run(ctx)
	}()

	server := web.NewServer(appContainer.ReviewService, web.Options{
		Addr:           cfg.HTTPAddr,
		BodyLimit:      cfg.MaxUploadBytes(),
		RequestTimeout: cfg.RequestTimeout,
		Health:         client.CheckHealth,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx); err != nil {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer, cfg.RequestTimeout)
		if err != nil {
			logger.Error("failed to create bot, continuing without it", "error", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := bot.Run(ctx); err != nil {
					logger.Error("bot stopped", "error", err)
				}
			}()
		}
	} else {
		logger.Info("TELEGRAM_TOKEN is empty, bot disabled")
	}

	logger.Info("service is running", "addr", cfg.HTTPAddr, "inference", cfg.InferenceURL, "segmenter", cfg.Segmenter)
	<-ctx.Done()
	wg.Wait()
	logger.Info("service stopped")
}
