package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main Maktaba configuration
type Config struct {
	// Telegram
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`

	// Catalog
	Catalog CatalogConfig `json:"catalog" mapstructure:"catalog"`

	// Session
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Delivery
	Delivery DeliveryConfig `json:"delivery" mapstructure:"delivery"`

	// UI
	UI UIConfig `json:"ui" mapstructure:"ui"`

	// History
	History HistoryConfig `json:"history" mapstructure:"history"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken       string `json:"bot_token" mapstructure:"bot_token"`
	UpdateTimeout  int    `json:"update_timeout" mapstructure:"update_timeout"`   // long-poll timeout, seconds
	WorkerPoolSize int    `json:"worker_pool_size" mapstructure:"worker_pool_size"` // concurrent update dispatchers
}

// CatalogConfig holds the materials catalog configuration
type CatalogConfig struct {
	BasePath string `json:"base_path" mapstructure:"base_path"`
	Watch    bool   `json:"watch" mapstructure:"watch"`
}

// SessionConfig holds per-chat session store configuration
type SessionConfig struct {
	TTLMinutes  int `json:"ttl_minutes" mapstructure:"ttl_minutes"`   // idle sessions older than this are evicted
	MaxSessions int `json:"max_sessions" mapstructure:"max_sessions"` // global session-count bound
	HistoryCap  int `json:"history_cap" mapstructure:"history_cap"`   // bounded message-history length
}

// DeliveryConfig holds file delivery pipeline configuration
type DeliveryConfig struct {
	InterFileDelayMs   int `json:"inter_file_delay_ms" mapstructure:"inter_file_delay_ms"`
	FileTimeoutSeconds int `json:"file_timeout_seconds" mapstructure:"file_timeout_seconds"`
	ProgressIntervalMs int `json:"progress_interval_ms" mapstructure:"progress_interval_ms"`
}

// UIConfig holds menu rendering configuration
type UIConfig struct {
	Animate        bool `json:"animate" mapstructure:"animate"`
	AnimateDelayMs int  `json:"animate_delay_ms" mapstructure:"animate_delay_ms"`
}

// HistoryConfig holds the delivery audit log configuration
type HistoryConfig struct {
	Enabled       bool   `json:"enabled" mapstructure:"enabled"`
	Path          string `json:"path" mapstructure:"path"`
	RetentionDays int    `json:"retention_days" mapstructure:"retention_days"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			UpdateTimeout:  60,
			WorkerPoolSize: 8,
		},
		Catalog: CatalogConfig{
			BasePath: "materials",
			Watch:    true,
		},
		Session: SessionConfig{
			TTLMinutes:  30,
			MaxSessions: 1000,
			HistoryCap:  20,
		},
		Delivery: DeliveryConfig{
			InterFileDelayMs:   400,
			FileTimeoutSeconds: 10,
			ProgressIntervalMs: 1500,
		},
		UI: UIConfig{
			Animate:        false,
			AnimateDelayMs: 250,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 90,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9090,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   50,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	v := NewValidator()

	if err := v.ValidateTelegramToken(c.Telegram.BotToken); err != nil {
		return err
	}
	if err := v.ValidateCatalogPath(c.Catalog.BasePath); err != nil {
		return err
	}
	if err := v.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Session.HistoryCap <= 0 {
		return fmt.Errorf("session history cap must be positive")
	}
	if c.Session.MaxSessions <= 0 {
		return fmt.Errorf("session max sessions must be positive")
	}
	if c.Delivery.InterFileDelayMs < 0 {
		return fmt.Errorf("delivery inter-file delay cannot be negative")
	}
	if c.Delivery.FileTimeoutSeconds <= 0 {
		return fmt.Errorf("delivery file timeout must be positive")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}

	return nil
}
