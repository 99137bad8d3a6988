package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "assessment-generator/internal/adapter/http"
	repo "assessment-generator/internal/adapter/repository"
	"assessment-generator/internal/config"
	"assessment-generator/internal/infrastructure/migration"
	"assessment-generator/internal/usecase"
	"assessment-generator/pkg/ai"
	"assessment-generator/pkg/captcha"
	infra "assessment-generator/pkg/infrastructure"
	"assessment-generator/pkg/logger"
	"assessment-generator/pkg/mailer"
	"assessment-generator/pkg/pdfservice"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level,
		logger.WithRedaction(cfg.Log.Redact),
		logger.WithHashSalt(cfg.Log.HashSalt),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		log.Fatal("failed to open subscriber store", "driver", cfg.Store.Driver, "error", err)
	}
	defer closeStore()

	completer, err := ai.NewCompleter(ctx, cfg.LLM, log)
	if err != nil {
		log.Fatal("failed to init llm provider", "provider", cfg.LLM.Provider, "error", err)
	}
	generator := ai.NewClient(completer, cfg.LLM, log)

	captchaClient := captcha.NewClient(&http.Client{Timeout: 10 * time.Second}, cfg.Captcha)

	renderer, files, err := openRenderer(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to init renderer", "driver", cfg.Renderer.Driver, "error", err)
	}

	notifier := mailer.New(cfg.SMTP, cfg.Server.SchedulingURL, log)

	processor := usecase.NewProcessor(captchaClient, store, generator, renderer, notifier, usecase.Options{
		TemplateID: cfg.Renderer.TemplateID,
		LeadMagnet: cfg.LLM.LeadMagnet,
		Window:     cfg.Server.ThrottleWindow,
	}, log)

	h := httpadapter.NewHandler(processor, files, log)
	app := httpadapter.NewApp(h, cfg.Server, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Server.Port, "store", cfg.Store.Driver, "renderer", cfg.Renderer.Driver, "llm", cfg.LLM.Provider)
		errCh <- app.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", "error", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (usecase.SubscriberStore, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := infra.NewSubscriberPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := migration.RunMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo.NewSubscriberRepo(pool), pool.Close, nil
	case "badger":
		db, err := infra.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				log.Error("failed to close badger store", "error", err)
			}
		}
		return repo.NewBadgerStore(db), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// openRenderer returns the document renderer and, for the local driver, the
// resolver that serves its files.
func openRenderer(ctx context.Context, cfg *config.Config, log *logger.Logger) (usecase.DocumentRenderer, httpadapter.FileResolver, error) {
	switch cfg.Renderer.Driver {
	case "service":
		return pdfservice.NewClient(&http.Client{Timeout: 30 * time.Second}, cfg.Renderer, log), nil, nil
	case "local":
		local, err := infra.NewLocalRenderer(infra.NewChromedpRenderer(cfg.Renderer.ChromePath), cfg.Renderer, cfg.Server.PublicBaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		go local.RunSweeper(ctx, time.Hour)
		return local, local, nil
	default:
		return nil, nil, fmt.Errorf("unknown renderer driver %q", cfg.Renderer.Driver)
	}
}
