package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mmcdole/kudos/internal/cache"
	"github.com/mmcdole/kudos/internal/engagement"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Cache      cache.Config      `mapstructure:"cache"`
	Engagement engagement.Config `mapstructure:"engagement"`
	Feed       FeedConfig        `mapstructure:"feed"`
	DevServer  DevServerConfig   `mapstructure:"devserver"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Logging    LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds the platform API connection
type ServerConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// FeedConfig holds feed paging and cache lifetimes
type FeedConfig struct {
	PageSize       int           `mapstructure:"page_size"`
	PageTTL        time.Duration `mapstructure:"page_ttl"`
	PostTTL        time.Duration `mapstructure:"post_ttl"`
	EngagementTTL  time.Duration `mapstructure:"engagement_ttl"`
	ScrollThrottle time.Duration `mapstructure:"scroll_throttle"`
}

// DevServerConfig holds the development backend settings
type DevServerConfig struct {
	Addr      string        `mapstructure:"addr"`
	DBPath    string        `mapstructure:"db_path"` // empty keeps everything in memory
	FailRate  float64       `mapstructure:"fail_rate"`
	Latency   time.Duration `mapstructure:"latency"`
	SeedPosts int           `mapstructure:"seed_posts"`
}

// MetricsConfig holds the Prometheus endpoint; empty Addr disables it
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"` // empty logs to stderr
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:     "http://localhost:8787",
			Timeout: 15 * time.Second,
		},
		Cache: cache.Config{
			MaxEntries: cache.DefaultMaxEntries,
			DefaultTTL: cache.DefaultTTL,
			MaxSize:    cache.DefaultMaxSize,
		},
		Engagement: engagement.Config{
			MinInterval:   engagement.DefaultMinInterval,
			CommitDelay:   engagement.DefaultCommitDelay,
			CommitTimeout: engagement.DefaultCommitTimeout,
			ShareBaseURL:  "http://localhost:8787",
		},
		Feed: FeedConfig{
			PageSize:       20,
			PageTTL:        2 * time.Minute,
			PostTTL:        10 * time.Minute,
			EngagementTTL:  30 * time.Second,
			ScrollThrottle: 500 * time.Millisecond,
		},
		DevServer: DevServerConfig{
			Addr:      ":8787",
			DBPath:    defaultDBPath(),
			SeedPosts: 60,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "kudos", "kudos.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "kudos", "kudos.log")
	}
}

// defaultDBPath returns the default dev server database path
func defaultDBPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "kudos", "devserver.db")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "kudos", "devserver.db")
	}
}

// DefaultConfigPath returns the default config directory for the current OS
func DefaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "kudos")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "kudos")
	}
}

// LoadConfig loads configuration from the default locations and environment
func LoadConfig() (*Config, error) {
	return Load(viper.New(), DefaultConfigPath(), ".")
}

// Load reads config.yaml from the first of dirs that has one, then applies
// KUDOS_* environment overrides (KUDOS_SERVER_URL, KUDOS_CACHE_MAX_ENTRIES...)
func Load(v *viper.Viper, dirs ...string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("KUDOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so environment overrides are seen by Unmarshal
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.token", cfg.Server.Token)
	v.SetDefault("server.timeout", cfg.Server.Timeout)

	v.SetDefault("cache.max_entries", cfg.Cache.MaxEntries)
	v.SetDefault("cache.default_ttl", cfg.Cache.DefaultTTL)
	v.SetDefault("cache.max_size", cfg.Cache.MaxSize)

	v.SetDefault("engagement.min_interval", cfg.Engagement.MinInterval)
	v.SetDefault("engagement.commit_delay", cfg.Engagement.CommitDelay)
	v.SetDefault("engagement.commit_timeout", cfg.Engagement.CommitTimeout)
	v.SetDefault("engagement.share_base_url", cfg.Engagement.ShareBaseURL)

	v.SetDefault("feed.page_size", cfg.Feed.PageSize)
	v.SetDefault("feed.page_ttl", cfg.Feed.PageTTL)
	v.SetDefault("feed.post_ttl", cfg.Feed.PostTTL)
	v.SetDefault("feed.engagement_ttl", cfg.Feed.EngagementTTL)
	v.SetDefault("feed.scroll_throttle", cfg.Feed.ScrollThrottle)

	v.SetDefault("devserver.addr", cfg.DevServer.Addr)
	v.SetDefault("devserver.db_path", cfg.DevServer.DBPath)
	v.SetDefault("devserver.fail_rate", cfg.DevServer.FailRate)
	v.SetDefault("devserver.latency", cfg.DevServer.Latency)
	v.SetDefault("devserver.seed_posts", cfg.DevServer.SeedPosts)

	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// SaveConfig writes the connection and logging settings to config.yaml in dir
func SaveConfig(cfg *Config, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("server.url", cfg.Server.URL)
	v.Set("server.token", cfg.Server.Token)
	v.Set("server.timeout", cfg.Server.Timeout.String())
	v.Set("engagement.share_base_url", cfg.Engagement.ShareBaseURL)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsConfigured returns true if the server URL is set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != ""
}
