package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/careline-ai/careline/cmd/mainconfig"
	"github.com/careline-ai/careline/internal/api/router"
	appconfig "github.com/careline-ai/careline/internal/config"
	"github.com/careline-ai/careline/internal/conversation"
	"github.com/careline-ai/careline/internal/notify"
	"github.com/careline-ai/careline/internal/observability/metrics"
	"github.com/careline-ai/careline/internal/patients"
	"github.com/careline-ai/careline/internal/providers"
	"github.com/careline-ai/careline/internal/scheduling"
	"github.com/careline-ai/careline/internal/tools"
	"github.com/careline-ai/careline/internal/voice"
	"github.com/careline-ai/careline/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting careline API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis (session state)
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)
	conversationMetrics := metrics.NewConversationMetrics(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	// Repositories
	providersRepo := providers.NewPostgresRepository(pool)
	patientsRepo := patients.NewPostgresRepository(pool)
	schedulingStore := scheduling.NewPostgresStore(pool)

	// Notifications
	notifier := notify.NewService(
		emailSender(cfg, awsCfg, logger),
		patientsRepo,
		providersRepo,
		true,
		logger.Named("notify"),
	)

	// Booking engine
	engine := scheduling.NewEngine(schedulingStore, notifier, logger.Named("scheduling"), bookingMetrics, scheduling.EngineConfig{
		HorizonDays:    cfg.BookingHorizonDays,
		StorageTimeout: cfg.StorageTimeout,
		NotifyTimeout:  cfg.NotificationTimeout,
	})

	// Reasoning service: Bedrock primary, Gemini fallback when configured.
	var llm conversation.LLMClient
	bedrockClient := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), logger.Named("bedrock"))
	llm = bedrockClient
	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		defer func() { _ = gemini.Close() }()
		llm = conversation.NewFallbackLLMClient(bedrockClient, gemini, logger.Named("llm"))
	}

	registryDeps := tools.Deps{
		Engine:    engine,
		Providers: providersRepo,
		Patients:  patientsRepo,
	}
	workflow := conversation.NewWorkflow(llm, tools.NewBookingRegistry(registryDeps), logger.Named("workflow"), conversationMetrics, conversation.WorkflowConfig{
		Model:            cfg.BedrockModelID,
		MaxSteps:         cfg.MaxTurnSteps,
		ReasoningTimeout: cfg.ReasoningTimeout,
		ReasoningRetries: cfg.ReasoningRetries,
	})

	sessions := conversation.NewRedisSessionStore(redisClient, cfg.SessionTTL, nil)
	turnLog := conversation.NewTurnLog(pool)
	processor := conversation.NewProcessor(sessions, workflow, turnLog, logger.Named("conversation"), conversation.ProcessorConfig{
		MaxHistoryMessages: cfg.MaxHistoryMessages,
	})

	orchestratorCfg := conversation.OrchestratorConfig{Workers: cfg.WorkerCount}
	orchestratorLogger := logger.Named("orchestrator")
	var orchestrator *conversation.Orchestrator
	if cfg.UseMemoryQueue {
		orchestrator = conversation.NewOrchestrator(processor, conversation.NewMemoryQueue(64), orchestratorLogger, orchestratorCfg)
	} else {
		orchestrator = conversation.NewOrchestrator(processor, conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL), orchestratorLogger, orchestratorCfg)
	}

	// Voice is opt-in: the conversation handler serves text either way.
	var transcriber voice.Transcriber
	var synthesizer voice.Synthesizer
	if cfg.VoiceEnabled {
		speechClient, err := voice.NewSpeechClient(ctx)
		if err != nil {
			logger.Error("failed to create speech client", "error", err)
			os.Exit(1)
		}
		defer func() { _ = speechClient.Close() }()
		ttsClient, err := voice.NewTextToSpeechClient(ctx)
		if err != nil {
			logger.Error("failed to create text-to-speech client", "error", err)
			os.Exit(1)
		}
		defer func() { _ = ttsClient.Close() }()

		transcriber = voice.NewGoogleTranscriber(speechClient, voice.STTConfig{
			LanguageCode: cfg.VoiceLocale,
		}, logger.Named("stt"))
		synthesizer = voice.NewGoogleSynthesizer(ttsClient, voice.TTSConfig{
			LanguageCode: cfg.VoiceLocale,
			VoiceName:    cfg.DefaultVoice,
		}, logger.Named("tts"))
	}

	routerCfg := &router.Config{
		Logger:              logger,
		ProvidersHandler:    providers.NewHandler(providersRepo, logger.Named("providers")),
		PatientsHandler:     patients.NewHandler(patientsRepo, logger.Named("patients")),
		SchedulingHandler:   scheduling.NewHandler(engine, logger.Named("scheduling")),
		ConversationHandler: conversation.NewHandler(orchestrator, transcriber, synthesizer, logger.Named("conversation")),
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown", "error", err)
	}

	logger.Info("server stopped")
}

// emailSender picks the configured email backend, falling back to the stub
// sender that only logs.
func emailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			return s
		}
	case "ses":
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
		}, logger); s != nil {
			return s
		}
	}
	return notify.NewStubEmailSender(logger)
}
