package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultDataDir         = "data"
	defaultLogFile         = "mod-catalog.log"
	defaultUserAgent       = "mod-catalog/dev"
	defaultNotifyQueueSize = 256
	defaultWebhookTimeout  = 5 * time.Second
)

// Config holds all configuration for the application.
// Values are loaded by Viper from a config file and/or environment variables.
type Config struct {
	DatabaseDriver  string        `mapstructure:"DATABASE_DRIVER"`
	DatabaseDSN     string        `mapstructure:"DATABASE_DSN"`
	DataDir         string        `mapstructure:"DATA_DIR"`
	StorageDir      string        `mapstructure:"STORAGE_DIR"` // Archive store, keyed by zip hash
	LogFile         string        `mapstructure:"LOG_FILE"`
	UserAgent       string        `mapstructure:"USERAGENT"`
	NotifyQueueSize int           `mapstructure:"NOTIFY_QUEUE_SIZE"`
	WebhookTimeout  time.Duration `mapstructure:"WEBHOOK_TIMEOUT"`
}

var envKeys = []string{
	"DATABASE_DRIVER",
	"DATABASE_DSN",
	"DATA_DIR",
	"STORAGE_DIR",
	"LOG_FILE",
	"USERAGENT",
	"NOTIFY_QUEUE_SIZE",
	"WEBHOOK_TIMEOUT",
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)   // Path to look for the config file in
	viper.SetConfigName(".env") // Name of config file (without extension)
	viper.SetConfigType("env")  // REQUIRED if the config file does not have the extension in the name

	vipErr := viper.ReadInConfig()
	if _, ok := vipErr.(viper.ConfigFileNotFoundError); ok {
		slog.Info("Config file (.env) not found, relying on environment variables.")
	} else if vipErr != nil {
		return Config{}, fmt.Errorf("fatal error config file: %w", vipErr)
	}

	viper.AutomaticEnv()
	for _, key := range envKeys {
		if err := viper.BindEnv(key, key); err != nil {
			slog.Warn("Unable to bind env var", "key", key, "error", err)
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", err)
	}

	processConfigDefaults(&config)

	if err := validateAndEnsureDirectories(&config); err != nil {
		return Config{}, err
	}

	return config, nil
}

// processConfigDefaults fills every unset value. Paths derived from DataDir are
// only filled once DataDir itself has a value.
func processConfigDefaults(config *Config) {
	config.DatabaseDriver = strings.ToLower(strings.TrimSpace(config.DatabaseDriver))
	if config.DatabaseDriver == "" {
		config.DatabaseDriver = DriverSQLite
	}
	if config.DataDir == "" {
		config.DataDir = defaultDataDir
	}
	if config.DatabaseDSN == "" && config.DatabaseDriver == DriverSQLite {
		config.DatabaseDSN = filepath.Join(config.DataDir, "catalog.db")
	}
	if config.StorageDir == "" {
		config.StorageDir = filepath.Join(config.DataDir, "storage")
	}
	if config.LogFile == "" {
		config.LogFile = defaultLogFile
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
		slog.Warn("USERAGENT not set in config or environment, using default.")
	}
	if config.NotifyQueueSize <= 0 {
		config.NotifyQueueSize = defaultNotifyQueueSize
	}
	if config.WebhookTimeout <= 0 {
		config.WebhookTimeout = defaultWebhookTimeout
	}
}

func validateAndEnsureDirectories(config *Config) error {
	switch config.DatabaseDriver {
	case DriverSQLite:
	case DriverPostgres:
		if config.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", config.DatabaseDriver)
	}

	if config.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}

	for _, dir := range []string{config.DataDir, config.StorageDir} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			slog.Info("Directory does not exist, creating it", "path", dir)
			if err := os.MkdirAll(dir, 0755); err != nil {
				slog.Error("Failed to create directory", "path", dir, "error", err)
				return err
			}
		} else if err != nil {
			slog.Error("Failed to check directory", "path", dir, "error", err)
			return err
		}
	}

	return nil
}
