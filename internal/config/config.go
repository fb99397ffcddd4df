package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `envPrefix:"SERVER_"`

	// Database configuration
	Database DatabaseConfig `envPrefix:"DB_"`

	// Auth configuration
	Auth AuthConfig `envPrefix:"AUTH_"`

	// Notification configuration
	Notify NotifyConfig `envPrefix:"NOTIFY_"`

	// Moderation configuration
	Moderation ModerationConfig `envPrefix:"MODERATION_"`

	// Comment import configuration
	Import ImportConfig `envPrefix:"IMPORT_"`

	// Logging configuration
	Log LogConfig `envPrefix:"LOG_"`

	// Tracing configuration
	Telemetry TelemetryConfig `envPrefix:"OTEL_"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver       string        `env:"DRIVER" envDefault:"postgres"` // "postgres" or "sqlite"
	Host         string        `env:"HOST" envDefault:"localhost"`
	Port         string        `env:"PORT" envDefault:"5432"`
	User         string        `env:"USER" envDefault:"postgres"`
	Password     string        `env:"PASSWORD" envDefault:"postgres"`
	Name         string        `env:"NAME" envDefault:"threaded_comments"`
	SSLMode      string        `env:"SSLMODE" envDefault:"disable"`
	Path         string        `env:"PATH" envDefault:"./data/comments.db"` // sqlite only
	MaxOpenConns int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	MaxLifetime  time.Duration `env:"MAX_LIFETIME" envDefault:"5m"`
}

// AuthConfig holds JWT settings
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
}

// NotifyConfig holds comment notification settings
type NotifyConfig struct {
	SMTPHost     string   `env:"SMTP_HOST"`
	SMTPPort     int      `env:"SMTP_PORT" envDefault:"25"`
	SMTPUser     string   `env:"SMTP_USER"`
	SMTPPassword string   `env:"SMTP_PASSWORD"`
	From         string   `env:"FROM" envDefault:"comments@localhost"`
	Recipients   []string `env:"RECIPIENTS" envSeparator:","`
	Workers      int      `env:"WORKERS" envDefault:"4"`
}

// ModerationConfig holds moderation settings
type ModerationConfig struct {
	PolicyFile string `env:"POLICY_FILE"` // optional YAML file of per-content-type policies
}

// ImportConfig holds comment import settings
type ImportConfig struct {
	BatchSize     int   `env:"BATCH_SIZE" envDefault:"500"`
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"52428800"` // in bytes
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"` // "json" or "pretty"
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Endpoint string `env:"ENDPOINT"`
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
}

// Load reads configuration from a .env file (if any) and environment variables
func Load() (*Config, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be one of: postgres, sqlite")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if c.Notify.Workers < 1 {
		return fmt.Errorf("NOTIFY_WORKERS must be positive")
	}
	if c.Import.BatchSize < 1 {
		return fmt.Errorf("IMPORT_BATCH_SIZE must be positive")
	}
	return nil
}

// GetDSN returns the connection string for the configured driver
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// SMTPEnabled reports whether an SMTP relay is configured
func (c *NotifyConfig) SMTPEnabled() bool {
	return strings.TrimSpace(c.SMTPHost) != ""
}
