package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpapi "github.com/gatekeeper-bot/gatekeeper/internal/api/http"
	"github.com/gatekeeper-bot/gatekeeper/internal/application/admission"
	"github.com/gatekeeper-bot/gatekeeper/internal/application/groups"
	"github.com/gatekeeper-bot/gatekeeper/internal/application/history"
	"github.com/gatekeeper-bot/gatekeeper/internal/config"
	"github.com/gatekeeper-bot/gatekeeper/internal/domain/group"
	"github.com/gatekeeper-bot/gatekeeper/internal/domain/verification"
	"github.com/gatekeeper-bot/gatekeeper/internal/events"
	"github.com/gatekeeper-bot/gatekeeper/internal/infrastructure/memstore"
	"github.com/gatekeeper-bot/gatekeeper/internal/infrastructure/postgres"
	"github.com/gatekeeper-bot/gatekeeper/internal/llm"
	"github.com/gatekeeper-bot/gatekeeper/internal/llm/gemini"
	"github.com/gatekeeper-bot/gatekeeper/internal/llm/ollama"
	"github.com/gatekeeper-bot/gatekeeper/internal/llm/openai"
	"github.com/gatekeeper-bot/gatekeeper/internal/transport/telegram"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the management API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// repositories
	var (
		registry    group.Registry
		historyRepo verification.Repository
		ready       func(context.Context) error
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(runCtx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("database connection failed")
		}
		defer pool.Close()
		if err := postgres.RunMigrations(runCtx, pool); err != nil {
			logger.Fatal().Err(err).Msg("database migration failed")
		}
		registry = postgres.NewGroupRepository(pool)
		historyRepo = postgres.NewVerificationRepository(pool)
		ready = pool.Ping
	} else {
		logger.Warn().Msg("database_url not set, groups and history are in-memory")
		registry = memstore.NewGroupRegistry()
		historyRepo = memstore.NewHistoryRepository()
	}

	// infrastructure
	store := memstore.NewChallengeStore()
	cooldowns := memstore.NewCooldownTracker()
	publisher := events.NewPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
	defer func() { _ = publisher.Close() }()

	gateway := llm.NewGateway(newBackendClient(cfg), cfg.Prompts, logger)

	api := telegram.NewClient(nil, cfg.Telegram.BaseURL, cfg.Telegram.BotToken)
	me, err := api.GetMe(runCtx)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram auth failed")
	}
	logger.Info().Int64("bot_id", me.ID).Str("username", me.Username).Msg("telegram token verified")

	// services
	historySvc := history.NewService(historyRepo, logger)
	groupsSvc := groups.NewService(registry, logger)
	admissionSvc := admission.NewService(
		registry,
		store,
		cooldowns,
		gateway,
		api,
		historySvc,
		publisher,
		cfg.Messages,
		admission.Config{
			AnswerTimeout: cfg.AnswerWindow(),
			RetryTimeout:  cfg.RetryWindow(),
			DefaultTopic:  cfg.DefaultTopic,
		},
		logger,
	)

	dispatcher := telegram.NewDispatcher(api, admissionSvc, groupsSvc, cfg.Telegram.PollWindow(), logger)

	apiServer := httpapi.NewServer(groupsSvc, historySvc, ready, cfg.Ops.AuthToken, cfg.Ops.AuthTokenBcrypt, logger)
	httpServer := &http.Server{
		Addr:         cfg.Ops.Addr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// background loops
	go func() {
		if err := dispatcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("telegram dispatcher stopped")
		}
	}()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case now := <-ticker.C:
				if n := cooldowns.Sweep(now.UTC()); n > 0 {
					logger.Debug().Int("expired", n).Msg("cooldowns swept")
				}
			}
		}
	}()

	go func() {
		logger.Info().Str("addr", cfg.Ops.Addr).Msg("ops server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("ops server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-runCtx.Done():
	}
	logger.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
	cancel()
	admissionSvc.Shutdown()
	return nil
}

// newBackendClient builds the configured LLM client. config.Load already
// rejected unknown backend names.
func newBackendClient(cfg *config.Config) llm.Client {
	switch cfg.Backend {
	case config.BackendOpenAI:
		return openai.New(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			Options: cfg.OpenAI.Options,
		})
	case config.BackendOllama:
		return ollama.New(ollama.Config{
			Model:   cfg.Ollama.Model,
			BaseURL: cfg.Ollama.BaseURL,
			Options: cfg.Ollama.Options,
		})
	default:
		return gemini.New(gemini.Config{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
			Options: cfg.Gemini.Options,
		})
	}
}

func newLogger(cfg config.Log) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
