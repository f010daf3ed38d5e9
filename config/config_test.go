package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if !cfg.RequireVerifiedUploads {
		t.Error("RequireVerifiedUploads should default to true")
	}
	if cfg.CompletionWindow() != 30*24*time.Hour {
		t.Errorf("CompletionWindow = %v", cfg.CompletionWindow())
	}
	if cfg.LockTTL != 30*time.Second {
		t.Errorf("LockTTL = %v", cfg.LockTTL)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REQUIRE_VERIFIED_UPLOADS", "false")
	t.Setenv("PUBLIC_BASE_URL", "https://suppliers.gcx.com.gh/")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.RequireVerifiedUploads {
		t.Error("RequireVerifiedUploads should be false")
	}
	if cfg.PublicBaseURL != "https://suppliers.gcx.com.gh" {
		t.Errorf("PublicBaseURL = %q, trailing slash not trimmed", cfg.PublicBaseURL)
	}
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		return &Config{
			JWTSecret:              "0123456789abcdef0123456789abcdef",
			DocumentHashSecret:     "a-long-enough-document-secret",
			PublicBaseURL:          "https://example.test",
			CompletionDays:         30,
			RequireVerifiedUploads: true,
			Environment:            "development",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"short hash secret", func(c *Config) { c.DocumentHashSecret = "short" }, true},
		{"no base url", func(c *Config) { c.PublicBaseURL = "" }, true},
		{"zero completion days", func(c *Config) { c.CompletionDays = 0 }, true},
		{"production default jwt", func(c *Config) {
			c.Environment = "production"
			c.JWTSecret = defaultJWTSecret
		}, true},
		{"production default hash secret", func(c *Config) {
			c.Environment = "production"
			c.DocumentHashSecret = defaultHashSecret
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
