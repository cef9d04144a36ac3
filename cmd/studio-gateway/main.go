package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kc-vaultik/shapex-studio/internal/agent"
	"github.com/kc-vaultik/shapex-studio/internal/blueprint"
	"github.com/kc-vaultik/shapex-studio/internal/config"
	"github.com/kc-vaultik/shapex-studio/internal/db"
	"github.com/kc-vaultik/shapex-studio/internal/dispatch"
	"github.com/kc-vaultik/shapex-studio/internal/httpapi"
	"github.com/kc-vaultik/shapex-studio/internal/idea"
	"github.com/kc-vaultik/shapex-studio/internal/model"
	"github.com/kc-vaultik/shapex-studio/internal/orchestrator"
	"github.com/kc-vaultik/shapex-studio/internal/session"
	"github.com/kc-vaultik/shapex-studio/internal/stream"
	"github.com/kc-vaultik/shapex-studio/internal/subscribers"
	"github.com/kc-vaultik/shapex-studio/internal/subscribers/logging"
	"github.com/kc-vaultik/shapex-studio/internal/subscribers/webhook"
)

func main() {
	logger := log.New(os.Stdout, "studio ", log.Ldate|log.Ltime|log.Lmicroseconds|log.LUTC)
	cfg, err := config.FromYAMLAndEnv()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
		logger.Fatalf("%s is required", config.EnvAnthropicAPIKey)
	}

	gormDB, err := db.OpenGorm(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}

	ideaStore, err := idea.NewGormStore(gormDB)
	if err != nil {
		logger.Fatalf("initialize idea store: %v", err)
	}
	sessionStore, err := session.NewGormStore(gormDB)
	if err != nil {
		logger.Fatalf("initialize session store: %v", err)
	}
	defer func() {
		if err := sessionStore.Close(); err != nil {
			logger.Printf("session store close error: %v", err)
		}
	}()
	blueprintStore, err := blueprint.NewGormStore(gormDB)
	if err != nil {
		logger.Fatalf("initialize blueprint store: %v", err)
	}

	registry := model.NewRegistry()
	registry.Register("anthropic", model.NewAnthropicProvider(cfg.AnthropicAPIKey))
	provider, ok := registry.Get("anthropic")
	if !ok {
		logger.Fatalf("anthropic provider not registered")
	}

	workers := make([]agent.Worker, 0, len(agent.Roles()))
	configs := agent.DefaultConfigs()
	for _, role := range agent.Roles() {
		worker, err := agent.NewModelWorker(role, provider, configs[role])
		if err != nil {
			logger.Fatalf("initialize %s worker: %v", role, err)
		}
		workers = append(workers, worker)
	}

	subs := []subscribers.Subscriber{logging.New(logger)}
	if cfg.WebhookURL != "" {
		subs = append(subs, webhook.New(webhookSubscriberName(cfg.WebhookURL), cfg.WebhookURL, logger))
	}
	dispatcher := dispatch.New(logger, subs)

	gateway := stream.NewGateway(logger)
	studio, err := orchestrator.NewService(
		logger,
		ideaStore,
		sessionStore,
		blueprintStore,
		workers,
		gateway,
		dispatcher,
		orchestrator.WithStageTimeout(cfg.StageTimeout),
	)
	if err != nil {
		logger.Fatalf("initialize orchestrator: %v", err)
	}

	reaper := session.NewReaper(logger, sessionStore, cfg.StaleSessionWindow, cfg.ReapInterval)
	reaper.Start()
	defer reaper.Stop()

	srv := httpapi.NewServer(logger, cfg.HTTPAddr, studio, gateway)
	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server crashed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("server shutdown error: %v", err)
	}
}

func webhookSubscriberName(webhookURL string) string {
	parsed, err := url.Parse(webhookURL)
	if err == nil {
		host := strings.TrimSpace(parsed.Host)
		if host != "" {
			return host
		}
	}
	return "webhook"
}
