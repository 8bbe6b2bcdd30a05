package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/speedcad")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("SUBMISSION_TIMEOUT", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.SubmissionTimeout != 60*time.Second {
		t.Errorf("SubmissionTimeout = %s, want 60s", cfg.SubmissionTimeout)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %s, want 10s", cfg.PollInterval)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("CORSOrigins = %v, want [*]", cfg.CORSOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SUBMISSION_TIMEOUT", "90s")
	t.Setenv("POLL_INTERVAL", "not-a-duration")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("PUBLIC_BASE_URL", "https://cad.example.com/")

	cfg := Load()

	if cfg.SubmissionTimeout != 90*time.Second {
		t.Errorf("SubmissionTimeout = %s, want 90s", cfg.SubmissionTimeout)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("invalid duration should fall back to default, got %s", cfg.PollInterval)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.PublicBaseURL != "https://cad.example.com" {
		t.Errorf("PublicBaseURL = %s", cfg.PublicBaseURL)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DatabaseURL:       "postgres://x",
			JWTSecret:         "s",
			SubmissionTimeout: time.Second,
			StoreTimeout:      time.Second,
			PollInterval:      time.Second,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET"},
		{"zero timeout", func(c *Config) { c.SubmissionTimeout = 0 }, "SUBMISSION_TIMEOUT"},
		{"half admin", func(c *Config) { c.AdminUsername = "admin" }, "ADMIN_USERNAME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			cfgErr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %s, want %s", cfgErr.Field, tt.field)
			}
		})
	}
}
