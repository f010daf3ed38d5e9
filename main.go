package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gcx-supplier-go/accounts"
	"gcx-supplier-go/audit"
	"gcx-supplier-go/config"
	"gcx-supplier-go/dashboard"
	"gcx-supplier-go/database"
	"gcx-supplier-go/documents"
	"gcx-supplier-go/handlers"
	"gcx-supplier-go/locks"
	"gcx-supplier-go/logging"
	"gcx-supplier-go/metrics"
	"gcx-supplier-go/middleware"
	"gcx-supplier-go/notify"
	"gcx-supplier-go/report"
	"gcx-supplier-go/requirements"
	"gcx-supplier-go/review"
	"gcx-supplier-go/storage"
	"gcx-supplier-go/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// Initialize config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Validate configuration
	if err := config.ValidateConfig(cfg); err != nil {
		log.Fatal("Invalid configuration:\n", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize JWT
	if err := utils.InitializeJWT(cfg.JWTSecret); err != nil {
		return err
	}

	// Initialize database
	gormLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		gormLevel = gormlogger.Info
	}
	db, err := database.Initialize(cfg.DatabaseURL, gormLevel)
	if err != nil {
		return err
	}

	if cfg.StaffEmail != "" {
		user, created, err := accounts.EnsureStaff(db, cfg.StaffEmail, cfg.StaffPassword)
		if err != nil {
			return err
		}
		if created {
			logger.Info("bootstrap staff account created", zap.String("email", user.Email))
		}
	}

	store, err := storage.NewLocalStore(cfg.StorageDir)
	if err != nil {
		return err
	}

	var locker locks.Locker = locks.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		locker = locks.NewRedisLocker(client, cfg.LockTTL, logger)
		logger.Info("using redis application locks", zap.String("addr", cfg.RedisAddr))
	}

	m := metrics.New()
	notifyOpts := senders(cfg, logger, m)
	if k, ok := notifyOpts.Email.(*notify.KafkaSender); ok {
		defer k.Close()
	}
	notifier := notify.NewDispatcher(notifyOpts)

	policy := requirements.Policy{RequireVerifiedUploads: cfg.RequireVerifiedUploads}
	recorder := audit.NewRecorder(nil)
	hub := dashboard.NewHub(db, logger)

	manager := review.NewManager(db, review.Options{
		Locker:           locker,
		Audit:            recorder,
		Accounts:         accounts.NewProvisioner(logger),
		Notifier:         notifier,
		Events:           hub,
		Metrics:          m,
		Policy:           policy,
		Logger:           logger,
		CompletionWindow: cfg.CompletionWindow(),
		PublicBaseURL:    cfg.PublicBaseURL,
	})
	docs := documents.NewService(db, documents.Options{
		Store:         store,
		Locker:        locker,
		Audit:         recorder,
		Notifier:      notifier,
		Metrics:       m,
		Policy:        policy,
		Logger:        logger,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	reports := report.NewService(db, report.NewGenerator(cfg.DocumentHashSecret, cfg.PublicBaseURL), report.ServiceOptions{
		Store:   store,
		Audit:   recorder,
		Metrics: m,
		Policy:  policy,
		Logger:  logger,
		Timeout: cfg.ReportTimeout,
	})

	// Initialize handlers with config
	h := handlers.NewHandlers(db, cfg, handlers.Deps{
		Review:    manager,
		Documents: docs,
		Reports:   reports,
		Verifier:  report.NewVerifier(db, cfg.DocumentHashSecret),
		Dashboard: hub,
		Metrics:   m,
		Logger:    logger,
	})

	limiter := middleware.NewRateLimiter(10, 50)
	go limiter.Cleanup(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Router(limiter, m.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.String("database", cfg.DatabaseURL),
			zap.Bool("require_verified_uploads", cfg.RequireVerifiedUploads))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// senders picks notification transports. Kafka takes both channels when
// brokers are configured; otherwise SMTP and the SMS gateway are used
// directly and anything unconfigured is only logged.
func senders(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) notify.DispatcherOptions {
	opts := notify.DispatcherOptions{
		Retries: cfg.NotificationRetries,
		Backoff: cfg.NotificationBackoff,
		Logger:  logger,
		Metrics: m,
	}
	fallback := notify.LogSender{Logger: logger.Named("notify")}

	if len(cfg.KafkaBrokers) > 0 {
		k := notify.NewKafkaSender(cfg.KafkaBrokers, cfg.KafkaNotificationTopic)
		opts.Email, opts.SMS = k, k
		return opts
	}

	opts.Email, opts.SMS = fallback, fallback
	if cfg.SMTPHost != "" {
		opts.Email = notify.SMTPSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}
	}
	if cfg.SMSGatewayURL != "" {
		opts.SMS = notify.SMSGatewaySender{
			URL:      cfg.SMSGatewayURL,
			APIKey:   cfg.SMSAPIKey,
			SenderID: cfg.SMSSenderID,
			Client:   &http.Client{Timeout: 10 * time.Second},
		}
	}
	return opts
}
