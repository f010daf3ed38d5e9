package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret  = "gcx-supplier-jwt-secret-change-in-production"
	defaultHashSecret = "gcx-supplier-document-secret-change-me"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL" envDefault:"gcx_supplier.db"`
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret          string `env:"JWT_SECRET" envDefault:"gcx-supplier-jwt-secret-change-in-production"`
	DocumentHashSecret string `env:"DOCUMENT_HASH_SECRET" envDefault:"gcx-supplier-document-secret-change-me"`
	PublicBaseURL      string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	StorageDir         string `env:"STORAGE_DIR" envDefault:"media"`

	// Only verified uploads satisfy a requirement when set.
	RequireVerifiedUploads bool `env:"REQUIRE_VERIFIED_UPLOADS" envDefault:"true"`
	CompletionDays         int  `env:"DOCUMENT_COMPLETION_DAYS" envDefault:"30"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"membership@gcx.com.gh"`

	SMSGatewayURL string `env:"SMS_GATEWAY_URL"`
	SMSAPIKey     string `env:"SMS_API_KEY"`
	SMSSenderID   string `env:"SMS_SENDER_ID" envDefault:"GCX"`

	KafkaBrokers           []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaNotificationTopic string   `env:"KAFKA_NOTIFICATION_TOPIC" envDefault:"supplier.notifications"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	LockTTL       time.Duration `env:"LOCK_TTL" envDefault:"30s"`

	NotificationRetries int           `env:"NOTIFICATION_RETRIES" envDefault:"3"`
	NotificationBackoff time.Duration `env:"NOTIFICATION_BACKOFF" envDefault:"500ms"`
	ReportTimeout       time.Duration `env:"REPORT_TIMEOUT" envDefault:"15s"`

	StaffEmail    string `env:"STAFF_EMAIL"`
	StaffPassword string `env:"STAFF_PASSWORD"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// CompletionWindow is how long an applicant has to supply requested documents.
func (c *Config) CompletionWindow() time.Duration {
	return time.Duration(c.CompletionDays) * 24 * time.Hour
}

func ValidateConfig(cfg *Config) error {
	var errs []error
	if len(cfg.DocumentHashSecret) < 16 {
		errs = append(errs, fmt.Errorf("DOCUMENT_HASH_SECRET must be at least 16 characters, got %d", len(cfg.DocumentHashSecret)))
	}
	if cfg.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required"))
	}
	if cfg.CompletionDays <= 0 {
		errs = append(errs, errors.New("DOCUMENT_COMPLETION_DAYS must be positive"))
	}
	if cfg.NotificationRetries < 0 {
		errs = append(errs, errors.New("NOTIFICATION_RETRIES must not be negative"))
	}
	if cfg.Environment == "production" {
		if cfg.JWTSecret == defaultJWTSecret {
			errs = append(errs, errors.New("JWT_SECRET must be changed in production"))
		}
		if cfg.DocumentHashSecret == defaultHashSecret {
			errs = append(errs, errors.New("DOCUMENT_HASH_SECRET must be changed in production"))
		}
	}
	if len(cfg.JWTSecret) < 32 {
		log.Printf("WARNING: JWT_SECRET should be at least 32 characters for security")
	}
	if !cfg.RequireVerifiedUploads {
		log.Printf("WARNING: REQUIRE_VERIFIED_UPLOADS is off, unverified uploads will satisfy requirements")
	}
	return errors.Join(errs...)
}
