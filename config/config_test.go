package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestProcessConfigDefaults(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		viper.Reset()
		cfg := Config{}
		processConfigDefaults(&cfg)

		if cfg.DatabaseDriver != DriverSQLite {
			t.Errorf("Expected DatabaseDriver to be sqlite, got %s", cfg.DatabaseDriver)
		}
		if cfg.DataDir != "data" {
			t.Errorf("Expected DataDir to be data, got %s", cfg.DataDir)
		}
		if cfg.DatabaseDSN != filepath.Join("data", "catalog.db") {
			t.Errorf("Expected DatabaseDSN under the data dir, got %s", cfg.DatabaseDSN)
		}
		if cfg.StorageDir != filepath.Join("data", "storage") {
			t.Errorf("Expected StorageDir under the data dir, got %s", cfg.StorageDir)
		}
		if cfg.UserAgent == "" {
			t.Error("Expected UserAgent to have a default value")
		}
		if cfg.NotifyQueueSize != 256 {
			t.Errorf("Expected NotifyQueueSize 256, got %d", cfg.NotifyQueueSize)
		}
		if cfg.WebhookTimeout != 5*time.Second {
			t.Errorf("Expected WebhookTimeout 5s, got %s", cfg.WebhookTimeout)
		}
	})

	t.Run("respects existing values", func(t *testing.T) {
		viper.Reset()
		cfg := Config{
			DatabaseDriver: "Postgres",
			DatabaseDSN:    "postgres://catalog@localhost/catalog",
			DataDir:        "/srv/catalog",
			UserAgent:      "custom-agent",
			WebhookTimeout: time.Second,
		}
		processConfigDefaults(&cfg)

		if cfg.DatabaseDriver != DriverPostgres {
			t.Errorf("Expected DatabaseDriver to be normalised to postgres, got %s", cfg.DatabaseDriver)
		}
		if cfg.DatabaseDSN != "postgres://catalog@localhost/catalog" {
			t.Errorf("Expected DatabaseDSN to stay, got %s", cfg.DatabaseDSN)
		}
		if cfg.StorageDir != filepath.Join("/srv/catalog", "storage") {
			t.Errorf("Expected StorageDir under custom data dir, got %s", cfg.StorageDir)
		}
		if cfg.UserAgent != "custom-agent" {
			t.Errorf("Expected UserAgent to stay custom-agent, got %s", cfg.UserAgent)
		}
		if cfg.WebhookTimeout != time.Second {
			t.Errorf("Expected WebhookTimeout to stay 1s, got %s", cfg.WebhookTimeout)
		}
	})
}

func TestValidateAndEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("unknown driver", func(t *testing.T) {
		cfg := Config{DatabaseDriver: "mysql", DataDir: tmpDir}
		if err := validateAndEnsureDirectories(&cfg); err == nil {
			t.Error("Expected error for unsupported driver")
		}
	})

	t.Run("postgres without dsn", func(t *testing.T) {
		cfg := Config{DatabaseDriver: DriverPostgres, DataDir: tmpDir}
		if err := validateAndEnsureDirectories(&cfg); err == nil {
			t.Error("Expected error for postgres without DATABASE_DSN")
		}
	})

	t.Run("creates directories", func(t *testing.T) {
		dataDir := filepath.Join(tmpDir, "catalog")
		cfg := Config{DatabaseDriver: DriverSQLite, DataDir: dataDir, StorageDir: filepath.Join(dataDir, "storage")}
		if err := validateAndEnsureDirectories(&cfg); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		for _, dir := range []string{cfg.DataDir, cfg.StorageDir} {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				t.Errorf("Directory %s was not created", dir)
			}
		}
	})
}
