package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	RootDir          string `mapstructure:"root_dir" validate:"required"`
	GamesFile        string `mapstructure:"games_file" validate:"required"`
	AppendPath       string `mapstructure:"append_path" validate:"required,startswith=/"`
	ListenAddr       string `mapstructure:"listen_addr" validate:"required"`
	BaseURL          string `mapstructure:"base_url" validate:"required,url"`
	MigrateRulesFile string `mapstructure:"migrate_rules_file"`
	PublishersFile   string `mapstructure:"publishers_file"`

	APIEnabled          bool    `mapstructure:"api_enabled"`
	CoverFallback       bool    `mapstructure:"cover_fallback"`
	EnrichDescriptions  bool    `mapstructure:"enrich_descriptions"`
	MetricsEnabled      bool    `mapstructure:"metrics_enabled"`
	MetricsPath         string  `mapstructure:"metrics_path" validate:"omitempty,startswith=/"`
	AppendRatePerSecond float64 `mapstructure:"append_rate_per_second" validate:"gte=0"`
	AppendBurst         int     `mapstructure:"append_burst" validate:"gte=0"`

	ShutdownTimeoutSeconds int64         `mapstructure:"shutdown_timeout_seconds"`
	ShutdownTimeout        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type" validate:"omitempty,oneof=none disabled bbolt"`
	BBoltPath              string        `mapstructure:"bbolt_path" validate:"required_if=StorageType bbolt"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// GamesPath is the games file location resolved against RootDir.
func (c *Config) GamesPath() string {
	if filepath.IsAbs(c.GamesFile) {
		return c.GamesFile
	}
	return filepath.Join(c.RootDir, c.GamesFile)
}

// ListPath is the URL path that serves the games file verbatim.
func (c *Config) ListPath() string {
	return "/" + filepath.Base(c.GamesFile)
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "games-devkit")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("root_dir", ".")
	v.SetDefault("games_file", "games.json")
	v.SetDefault("append_path", "/save-game.php")
	v.SetDefault("listen_addr", ":3000")
	v.SetDefault("base_url", "http://localhost:3000")
	v.SetDefault("migrate_rules_file", "")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("api_enabled", true)
	v.SetDefault("cover_fallback", false)
	v.SetDefault("enrich_descriptions", false)
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("metrics_path", "/metrics")
	v.SetDefault("append_rate_per_second", 0)
	v.SetDefault("append_burst", 0)
	v.SetDefault("shutdown_timeout_seconds", 5)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/history.db")
	v.SetDefault("storage_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize validates the config and derives the duration fields. Callers that change
// fields after Load (CLI flags) must call it again.
func (c *Config) Finalize() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if c.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid shutdown_timeout_seconds (must be positive seconds)")
	}
	c.ShutdownTimeout = time.Duration(c.ShutdownTimeoutSeconds) * time.Second

	if c.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if c.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	c.StorageTTL = time.Duration(c.StorageTTLSeconds) * time.Second
	c.StorageCleanupInterval = time.Duration(c.StorageCleanupSeconds) * time.Second

	return nil
}
