package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/afyabook/afyabook/cmd/mainconfig"
	"github.com/afyabook/afyabook/internal/api/router"
	"github.com/afyabook/afyabook/internal/booking"
	appconfig "github.com/afyabook/afyabook/internal/config"
	"github.com/afyabook/afyabook/internal/dialog"
	"github.com/afyabook/afyabook/internal/directory"
	"github.com/afyabook/afyabook/internal/notify"
	"github.com/afyabook/afyabook/internal/notify/atclient"
	"github.com/afyabook/afyabook/internal/observability/metrics"
	"github.com/afyabook/afyabook/internal/triage"
	"github.com/afyabook/afyabook/internal/ussd"
	"github.com/afyabook/afyabook/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting afyabook USSD server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ussdMetrics := metrics.NewUSSDMetrics(registry)

	ctx := context.Background()

	// Repositories: Postgres when a database is configured, in-memory
	// otherwise (local development).
	var (
		directoryRepo dialog.Directory
		bookingRepo   dialog.Bookings
		slotSource    triage.SlotSource
		typeSource    triage.TypeSource
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		dir := directory.NewPostgresRepository(pool)
		book := booking.NewPostgresRepository(pool)
		directoryRepo, bookingRepo = dir, book
		typeSource, slotSource = dir, book
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
		dir := directory.NewInMemoryRepository(demoDoctors())
		book := booking.NewInMemoryRepository()
		directoryRepo, bookingRepo = dir, book
		typeSource, slotSource = dir, book
	}

	// Session store.
	var store ussd.Store
	if cfg.SessionStore == "redis" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		store = ussd.NewRedisStore(client, cfg.SessionTTL)
		logger.Info("using redis session store", "addr", cfg.RedisAddr)
	} else {
		store = ussd.NewMemoryStore(cfg.SessionTTL)
		logger.Info("using in-memory session store")
	}

	// Symptom triage model.
	var llm triage.LLMClient
	switch cfg.TriageProvider {
	case "bedrock":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		llm = triage.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		logger.Info("triage provider: bedrock", "model", cfg.BedrockModelID)
	case "gemini":
		client, err := triage.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create Gemini client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		llm = client
		logger.Info("triage provider: gemini", "model", cfg.GeminiModelID)
	default:
		logger.Warn("triage provider disabled, symptom checks use the safe fallback")
	}
	triageService := triage.NewService(llm, typeSource, slotSource, logger, ussdMetrics, triage.Config{
		Model:             cfg.BedrockModelID,
		DefaultSpecialist: cfg.DefaultSpecialist,
	})

	// Confirmation SMS.
	var sender notify.Sender
	if cfg.ATAPIKey != "" {
		client, err := atclient.New(atclient.Config{
			BaseURL:    cfg.ATBaseURL,
			APIKey:     cfg.ATAPIKey,
			Username:   cfg.ATUsername,
			From:       cfg.ATSenderID,
			MaxRetries: cfg.SMSMaxRetries,
			Backoff:    cfg.SMSRetryBackoff,
			Logger:     logger.Logger,
		})
		if err != nil {
			logger.Error("failed to create SMS client", "error", err)
			os.Exit(1)
		}
		sender = client
	} else {
		logger.Warn("AT_API_KEY not set, confirmation SMS disabled")
	}
	notifier := notify.NewService(sender, logger, ussdMetrics)

	// Dialog engine.
	engine := ussd.NewEngine(store, logger,
		ussd.WithRedirectLimit(cfg.RedirectLimit),
		ussd.WithErrorMessage(dialog.SystemErrorMessage),
	)
	if err := dialog.Register(engine, dialog.Config{
		Directory:        directoryRepo,
		Bookings:         bookingRepo,
		Triage:           triageService,
		Notifier:         notifier,
		Logger:           logger,
		MinSymptomLength: cfg.MinSymptomLength,
	}); err != nil {
		logger.Error("failed to register dialog", "error", err)
		os.Exit(1)
	}

	r := router.New(&router.Config{
		Logger:          logger,
		USSDHandler:     ussd.NewHandler(engine, logger, ussdMetrics),
		MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		RateLimitPerSec: cfg.RateLimitPerSec,
		RateLimitBurst:  cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}

// demoDoctors seeds the in-memory directory so local development has
// something to browse.
func demoDoctors() []directory.Doctor {
	return []directory.Doctor{
		{ID: 1, Name: "Dr. Achieng", Type: "General Practitioner", Location: "Nairobi", Contact: "0711000001", Email: "achieng@afyabook.example", Address: "Moi Avenue 12"},
		{ID: 2, Name: "Dr. Mwangi", Type: "Dentist", Location: "Nairobi", Contact: "0711000002", Email: "mwangi@afyabook.example", Address: "Kenyatta Lane 4"},
		{ID: 3, Name: "Dr. Otieno", Type: "General Practitioner", Location: "Kisumu", Contact: "0711000003", Email: "otieno@afyabook.example", Address: "Oginga Street 7"},
	}
}
