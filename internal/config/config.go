package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	RemotePostgres = "postgres"
	RemoteREST     = "rest"
)

type Config struct {
	App struct {
		Name     string `envconfig:"APP_NAME" default:"Finsync"`
		Port     int    `envconfig:"PORT" default:"8080"`
		LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"finsync"`
	}

	Remote struct {
		Driver string `envconfig:"REMOTE_DRIVER" default:"postgres"`
		URL    string `envconfig:"REMOTE_URL"`
		APIKey string `envconfig:"REMOTE_API_KEY"`
	}

	Auth struct {
		SessionToken string `envconfig:"SESSION_TOKEN"`
		JWTSecret    string `envconfig:"JWT_SECRET"`
	}

	Local struct {
		DataDir string `envconfig:"DATA_DIR" default:".finsync"`
	}

	Sync struct {
		Enabled       bool          `envconfig:"SYNC_ENABLED" default:"true"`
		PushInterval  time.Duration `envconfig:"SYNC_PUSH_INTERVAL" default:"30s"`
		DebounceDelay time.Duration `envconfig:"SYNC_DEBOUNCE" default:"2s"`
		PullCooldown  time.Duration `envconfig:"SYNC_PULL_COOLDOWN" default:"1s"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

// LocalDBPath is the SQLite file holding the local stores and sync markers.
func (c *Config) LocalDBPath() string {
	return filepath.Join(c.Local.DataDir, "finsync.db")
}

// LockPath is the advisory lock guarding the local data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Local.DataDir, "finsync.lock")
}

func (c *Config) LogFilePath() string {
	return filepath.Join(c.Local.DataDir, "finsync.log")
}

// LogLevel parses App.LogLevel, falling back to info.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return slog.LevelInfo
	}

	return level
}

func (c *Config) validate() error {
	switch c.Remote.Driver {
	case RemotePostgres:
	case RemoteREST:
		if c.Remote.URL == "" {
			return fmt.Errorf("REMOTE_URL is required for the %s driver", RemoteREST)
		}
	default:
		return fmt.Errorf("unknown remote driver %q", c.Remote.Driver)
	}

	if c.Sync.PushInterval <= 0 || c.Sync.DebounceDelay <= 0 || c.Sync.PullCooldown < 0 {
		return fmt.Errorf("sync intervals must be positive")
	}

	return nil
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.Remote.Driver = strings.ToLower(strings.TrimSpace(cfg.Remote.Driver))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
