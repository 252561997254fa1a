// Package config loads server configuration from the environment.
// A .env file in the working directory is read first when present;
// real environment variables win.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig
	Mail     MailConfig
	Sessions SessionConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API listens on.
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`
	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// MailConfig holds remote mail provider settings.
type MailConfig struct {
	// BaseURL is the Mail.tm-compatible API endpoint.
	BaseURL string `envconfig:"MAIL_BASE_URL" default:"https://api.mail.tm"`
	// Timeout bounds each remote call.
	Timeout time.Duration `envconfig:"MAIL_TIMEOUT" default:"15s"`
}

// SessionConfig holds session lifetime settings.
type SessionConfig struct {
	// TTL is how long a generated address stays bound to its owner.
	TTL time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	// SweepInterval is how often expired sessions are evicted.
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	// MaxConcurrentRemote caps in-flight calls to the mail provider.
	MaxConcurrentRemote int `envconfig:"MAX_CONCURRENT_REMOTE" default:"10"`
}

// DatabaseConfig holds PostgreSQL settings for the message archive.
// The archive is optional: with Enabled false, messages are served from
// the remote provider only.
type DatabaseConfig struct {
	Enabled  bool   `envconfig:"DB_ENABLED" default:"false"`
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"tempmail"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Name, c.User, c.Password, c.SSLMode)
}

// RedisConfig holds Redis settings for the event bus transport.
// With Enabled false, events stay in-process.
type RedisConfig struct {
	Enabled bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host    string `envconfig:"REDIS_HOST" default:"localhost"`
	Port    int    `envconfig:"REDIS_PORT" default:"6379"`
}

// Addr returns the Redis host:port address.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	// JSON switches from text to JSON output.
	JSON bool `envconfig:"LOG_JSON" default:"false"`
}

// Load reads configuration from the environment, preferring a .env
// file when one exists.
func Load() (*Config, error) {
	// Missing .env is fine, system environment is used directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return &cfg, nil
}
