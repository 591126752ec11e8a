package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dispute-agent/internal/breaker"
	"dispute-agent/internal/config"
	"dispute-agent/internal/db"
	"dispute-agent/internal/dispute"
	"dispute-agent/internal/enrichment"
	"dispute-agent/internal/fraud"
	"dispute-agent/internal/llm"
	"dispute-agent/internal/middleware"
	"dispute-agent/internal/notify"
	"dispute-agent/internal/retrieval"
	"dispute-agent/internal/routes"
	"dispute-agent/internal/telemetry"
	"dispute-agent/internal/workflow"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Str("service", "dispute-agent").Logger()

	cfg := config.Load()
	ctx := context.Background()

	// Telemetry
	tp, err := telemetry.Init(ctx, cfg.OTelServiceName, cfg.OTelEndpoint, cfg.ScoutEnvironment)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init telemetry")
	}

	metrics, err := telemetry.NewGenAIMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init metrics")
	}

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database not available")
	}
	audit := db.NewAuditLogger(pool)

	// LLM client
	var primary llm.Provider
	switch cfg.LLMProvider {
	case "ollama":
		primary = llm.NewOllamaProvider(cfg.OllamaBaseURL)
	case "google":
		primary = llm.NewGoogleProvider(cfg.GoogleAPIKey)
	default:
		primary = llm.NewOpenAIProvider(cfg.OpenAIAPIKey)
	}

	var fallback llm.Provider
	if cfg.FallbackProvider == "anthropic" && cfg.AnthropicAPIKey != "" {
		fallback = llm.NewAnthropicProvider(cfg.AnthropicAPIKey)
	}

	llmClient := &llm.Client{
		Primary:              primary,
		Fallback:             fallback,
		Tracer:               tp.Tracer,
		Metrics:              metrics,
		PrimaryProvider:      cfg.LLMProvider,
		FallbackProviderName: cfg.FallbackProvider,
		FallbackModel:        cfg.FallbackModel,
	}

	// Upstream collaborators
	enrichBreaker := breaker.New("enrichment", breaker.Config{})
	enricher := enrichment.NewClient(cfg.EnrichmentAPIURL, enrichBreaker)

	vectorBackend := retrieval.NewHTTPBackend(cfg.VectorStoreURL)
	retriever := retrieval.NewRetriever(
		vectorBackend,
		llmClient, cfg.LLMModel,
		cfg.SimilarityThreshold, cfg.MaxRetryAttempts, cfg.RetrievalTopK,
		tp.Tracer,
	)

	var transports []notify.Transport
	if cfg.SendGridAPIKey != "" {
		sg := notify.NewSendGridTransport(cfg.SendGridAPIKey, cfg.SMTPEmail)
		transports = append(transports, notify.Guard(sg, breaker.New("sendgrid", breaker.Config{})))
	}
	if cfg.SMTPEmail != "" && cfg.SMTPPassword != "" {
		sm := notify.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPEmail, cfg.SMTPPassword)
		transports = append(transports, notify.Guard(sm, breaker.New("smtp", breaker.Config{})))
	}
	notifier := notify.NewChain(transports...)

	synthesizer := dispute.NewSynthesizer(
		llmClient, cfg.LLMModel,
		cfg.DefaultTemperature, cfg.DefaultMaxTokens, cfg.MaxRetryAttempts,
		tp.Tracer,
	)

	wf := &workflow.Workflow{
		Enricher:            enricher,
		Researcher:          retriever,
		Fraud:               fraud.NewAnalyzer(),
		Adjudicator:         synthesizer,
		Dispatcher:          dispute.NewDispatcher(notifier, cfg.MaxRetryAttempts),
		ReviewNotifier:      notifier,
		Store:               workflow.NewPGStore(pool),
		Audit:               audit,
		Tracer:              tp.Tracer,
		Metrics:             metrics,
		SimilarityThreshold: cfg.SimilarityThreshold,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		MaxQueryAttempts:    cfg.MaxRetryAttempts,
	}

	// Router
	r := chi.NewRouter()
	r.Use(middleware.OTelHTTP(cfg.OTelServiceName))

	r.Get("/api/health", routes.HealthHandler(cfg.OTelServiceName, pool, vectorBackend))
	r.Post("/webhooks/dispute", routes.WebhookHandler(wf, audit))
	r.Get("/disputes/{disputeID}", routes.StatusHandler(pool))
	r.Get("/disputes/{disputeID}/audit", routes.AuditTrailHandler(pool))
	r.Get("/review-queue", routes.ReviewQueueHandler(pool))
	r.Post("/review-queue/{disputeID}", routes.ResolveReviewHandler(pool))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting dispute-agent")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	pool.Close()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("telemetry shutdown error")
	}
}
