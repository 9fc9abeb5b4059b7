package config

import (
	"errors"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Sync       SyncConfig       `yaml:"sync"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                 int     `yaml:"port"`
	RateLimitPerSec      float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst       int     `yaml:"rate_limit_burst"`
	LoginRateLimitPerSec float64 `yaml:"login_rate_limit_per_sec"`
	CacheTTLSeconds      int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnableTimescale        bool   `yaml:"enable_timescale"`
}

// AuthConfig holds session token settings and the seeded dashboard users.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenTTLMinutes int           `yaml:"token_ttl_minutes"`
	TokenTTL        time.Duration `yaml:"-"`
	Users           []UserConfig  `yaml:"users"`
}

// UserConfig describes a user seeded into the users table at start-up.
type UserConfig struct {
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"`
	Admin        bool   `yaml:"admin"`
}

// SyncConfig controls the live subscriptions behind the dashboard.
type SyncConfig struct {
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	PollInterval        time.Duration `yaml:"-"`
	ReadingWindowHours  int           `yaml:"reading_window_hours"`
	ReadingLimit        int           `yaml:"reading_limit"`
	AlertLimit          int           `yaml:"alert_limit"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no users.
// Only the JWT secret has to be filled in by the caller.
func Default() *Config {
	cfg := &Config{Auth: AuthConfig{JWTSecret: "change-me"}}
	_ = cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.LoginRateLimitPerSec <= 0 {
		cfg.Server.LoginRateLimitPerSec = 1
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must be set")
	}
	if cfg.Auth.TokenTTLMinutes <= 0 {
		cfg.Auth.TokenTTLMinutes = 720
	}
	cfg.Auth.TokenTTL = time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute

	if cfg.Sync.PollIntervalSeconds <= 0 {
		cfg.Sync.PollIntervalSeconds = 5
	}
	cfg.Sync.PollInterval = time.Duration(cfg.Sync.PollIntervalSeconds) * time.Second
	if cfg.Sync.ReadingWindowHours <= 0 {
		cfg.Sync.ReadingWindowHours = 24
	}
	if cfg.Sync.ReadingLimit <= 0 {
		cfg.Sync.ReadingLimit = 1000
	}
	if cfg.Sync.AlertLimit <= 0 {
		cfg.Sync.AlertLimit = 50
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	return nil
}
