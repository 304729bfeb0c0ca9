package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/punkouter25/podebaterap/internal/audit"
	"github.com/punkouter25/podebaterap/internal/config"
	"github.com/punkouter25/podebaterap/internal/headlines"
	"github.com/punkouter25/podebaterap/internal/httpapi"
	"github.com/punkouter25/podebaterap/internal/llmclient"
	"github.com/punkouter25/podebaterap/internal/orchestrator"
	"github.com/punkouter25/podebaterap/internal/personastore"
	"github.com/punkouter25/podebaterap/internal/ttsclient"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP+WebSocket debate API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.SeedIfEmpty(ctx, cfg.PersonasSeed); err != nil {
		logger.Warn("seeding personas failed", zap.Error(err))
	}

	auditPublisher := buildAuditPublisher(cfg, logger)
	if closer, ok := auditPublisher.(*audit.KafkaPublisher); ok {
		defer closer.Close()
	}

	registry := orchestrator.NewRegistry(orchestrator.Dependencies{
		LLM:    llmclient.NewOpenAIClient(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMDeployment),
		TTS:    ttsclient.NewHTTPClient(cfg.TTSEndpoint, cfg.TTSAPIKey, 30*time.Second),
		Store:  store,
		Voices: ttsclient.VoiceTable{Voices: cfg.VoicesMap, DefaultMale: cfg.VoicesDefaultMale, DefaultFemale: cfg.VoicesDefaultFemale},
		Audit:  auditPublisher,
		Logger: logger,
	})

	headlineProvider := headlines.NewHTTPProvider(cfg.HeadlinesEndpoint, cfg.HeadlinesAPIKey, 5*time.Second, logger)

	server := httpapi.NewServer(registry, store, headlineProvider, logger)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: server}

	stopReaper := startTTLReaper(registry, cfg.SessionTTL, logger)
	defer stopReaper()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func openStore(cfg config.Config) (*personastore.GormStore, error) {
	driver := "sqlite"
	return personastore.NewGormStore(driver, cfg.StoreConnection)
}

func buildAuditPublisher(cfg config.Config, logger *zap.Logger) orchestrator.AuditPublisher {
	if len(cfg.KafkaBrokers) == 0 {
		return audit.NoopPublisher{}
	}
	pub, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Warn("audit kafka publisher unavailable, falling back to noop", zap.Error(err))
		return audit.NoopPublisher{}
	}
	return pub
}

func startTTLReaper(registry *orchestrator.Registry, ttl time.Duration, logger *zap.Logger) func() {
	if ttl <= 0 {
		return func() {}
	}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := registry.SweepExpired(ttl); n > 0 {
					logger.Debug("swept expired sessions", zap.Int("count", n))
				}
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}
