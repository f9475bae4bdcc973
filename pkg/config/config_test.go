package config

import (
	"os"
	"testing"
)

var allKeys = []string{
	"PORT", "ENVIRONMENT", "DATABASE_PATH", "JWT_SECRET", "CORS_ORIGINS",
	"MAX_UPLOAD_SIZE", "FILE_STORAGE_PATH", "PUBLIC_BASE_URL", "REDIS_URL",
	"VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY",
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range allKeys {
		_ = os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.Environment != "development" {
		t.Fatalf("Environment = %q, want %q", cfg.Environment, "development")
	}
	if cfg.DatabasePath != "./data/gapchat.db" {
		t.Fatalf("DatabasePath = %q, want default", cfg.DatabasePath)
	}
	if cfg.FileStoragePath != "./data/uploads" {
		t.Fatalf("FileStoragePath = %q, want default", cfg.FileStoragePath)
	}
	if cfg.MaxUploadSize != 10485760 {
		t.Fatalf("MaxUploadSize = %d, want 10485760", cfg.MaxUploadSize)
	}
	if cfg.RedisURL != "" {
		t.Fatalf("RedisURL = %q, want empty", cfg.RedisURL)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	for _, key := range allKeys {
		_ = os.Unsetenv(key)
	}

	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_PATH", "/var/lib/gapchat/gapchat.db")
	t.Setenv("MAX_UPLOAD_SIZE", "2048")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CORS_ORIGINS", "https://example.com")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Fatalf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.Environment != "production" {
		t.Fatalf("Environment = %q, want %q", cfg.Environment, "production")
	}
	if cfg.DatabasePath != "/var/lib/gapchat/gapchat.db" {
		t.Fatalf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.MaxUploadSize != 2048 {
		t.Fatalf("MaxUploadSize = %d, want 2048", cfg.MaxUploadSize)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.CORSOrigins != "https://example.com" {
		t.Fatalf("CORSOrigins = %q", cfg.CORSOrigins)
	}
}

func TestLoadInvalidUploadSizeFallsBack(t *testing.T) {
	t.Setenv("MAX_UPLOAD_SIZE", "not-a-number")

	cfg := Load()

	if cfg.MaxUploadSize != 10485760 {
		t.Fatalf("MaxUploadSize = %d, want default on parse failure", cfg.MaxUploadSize)
	}
}
