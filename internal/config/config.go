package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/semmidev/s3cleaner/internal/domain"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Clean    CleanConfig    `mapstructure:"clean"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Type string `mapstructure:"type"`

	// AWS S3 and compatible services
	Endpoint       string        `mapstructure:"endpoint"`
	UsePathStyle   bool          `mapstructure:"use_path_style"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`

	// Local filesystem
	LocalRoot string `mapstructure:"local_root"`
	PageSize  int    `mapstructure:"page_size"`
}

type CleanConfig struct {
	Extensions []string `mapstructure:"extensions"`
	MaxAgeDays int      `mapstructure:"max_age_days"`
	BatchSize  int      `mapstructure:"batch_size"`
}

type ScheduleConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Cron    string        `mapstructure:"cron"`
	Targets []CleanTarget `mapstructure:"targets"`
}

type CleanTarget struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// Load reads the YAML file at path, if any, and applies S3CLEANER_*
// environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("s3cleaner")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "s3cleaner")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file", "logs/s3_cleaner_activity.log")

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("storage.type", "s3")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.use_path_style", false)
	v.SetDefault("storage.max_attempts", 5)
	v.SetDefault("storage.connect_timeout", 10*time.Second)
	v.SetDefault("storage.read_timeout", 30*time.Second)
	v.SetDefault("storage.local_root", "./data")
	v.SetDefault("storage.page_size", 1000)

	v.SetDefault("clean.extensions", domain.DefaultExtensions)
	v.SetDefault("clean.max_age_days", domain.DefaultMaxAgeDays)
	v.SetDefault("clean.batch_size", domain.MaxBatchSize)

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.cron", "0 0 3 * * *")

	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")
}

func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "s3":
		if c.Storage.MaxAttempts < 1 {
			return fmt.Errorf("storage.max_attempts must be at least 1")
		}
	case "local":
		if c.Storage.LocalRoot == "" {
			return fmt.Errorf("storage.local_root is required for local storage")
		}
		if c.Storage.PageSize < 1 {
			return fmt.Errorf("storage.page_size must be at least 1")
		}
	default:
		return fmt.Errorf("unsupported storage.type: %q", c.Storage.Type)
	}

	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("clean: %w", err)
	}

	if c.Schedule.Enabled {
		if c.Schedule.Cron == "" {
			return fmt.Errorf("schedule.cron is required when enabled")
		}
		if len(c.Schedule.Targets) == 0 {
			return fmt.Errorf("schedule.targets: at least one target is required when enabled")
		}
		for i, target := range c.Schedule.Targets {
			if target.Bucket == "" {
				return fmt.Errorf("schedule.targets[%d]: bucket is required", i)
			}
		}
	}

	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram: bot_token and chat_id are required when enabled")
		}
	}

	return nil
}

func (c *Config) Policy() domain.CleanPolicy {
	return domain.CleanPolicy{
		Extensions: c.Clean.Extensions,
		MaxAgeDays: c.Clean.MaxAgeDays,
		BatchSize:  c.Clean.BatchSize,
	}
}

func (c *Config) GetScheduleRequests() []domain.CleanRequest {
	requests := make([]domain.CleanRequest, 0, len(c.Schedule.Targets))
	for _, target := range c.Schedule.Targets {
		requests = append(requests, domain.CleanRequest{
			Bucket: target.Bucket,
			Prefix: target.Prefix,
		})
	}
	return requests
}
