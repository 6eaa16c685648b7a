package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/sentinel/internal/engine"
)

// Config represents the complete application configuration
type Config struct {
	Watchlist  []WatchItem      `mapstructure:"watchlist"`
	Scan       ScanConfig       `mapstructure:"scan"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Collector  CollectorConfig  `mapstructure:"collector"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// WatchItem is one monitored equity with the keywords used to match news
// coverage against it.
type WatchItem struct {
	Ticker   string   `mapstructure:"ticker"`
	Name     string   `mapstructure:"name"`
	Sector   string   `mapstructure:"sector"`
	Related  []string `mapstructure:"related"`
	Keywords []string `mapstructure:"keywords"`
}

// ScanConfig holds scan loop behavior configuration
type ScanConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	Timezone         string        `mapstructure:"timezone"`           // exchange timezone for the daily summary
	DailySummaryHour int           `mapstructure:"daily_summary_hour"` // local hour, 24h clock
}

// ScoringConfig holds the tunable subset of the scoring engine configuration.
// Keyword tables and rule point values keep their built-in defaults.
type ScoringConfig struct {
	Weights            engine.Weights `mapstructure:"weights"`
	ConfluenceBonus    float64        `mapstructure:"confluence_bonus"`
	NoisePenaltyMax    float64        `mapstructure:"noise_penalty_max"`
	CauseThresholdPSI  float64        `mapstructure:"cause_threshold_psi"`  // run cause analysis at or above
	AlertThresholdPSI  float64        `mapstructure:"alert_threshold_psi"`  // dispatch an alert at or above
	PriceChangeTrigger float64        `mapstructure:"price_change_trigger"` // absolute % move forcing cause analysis
	VolumeRatioTrigger float64        `mapstructure:"volume_ratio_trigger"`
}

// CollectorConfig holds news and price collection configuration
type CollectorConfig struct {
	FinnhubAPIKey     string        `mapstructure:"finnhub_api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	NewsWindow        time.Duration `mapstructure:"news_window"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// SummarizerConfig holds the optional AI summarizer configuration
type SummarizerConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// AlertsConfig holds alert fatigue controls
type AlertsConfig struct {
	Cooldown       time.Duration `mapstructure:"cooldown"`
	NoiseMaxPerDay int           `mapstructure:"noise_max_per_day"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("SENTINEL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Scan defaults
	v.SetDefault("scan.interval", "15m")
	v.SetDefault("scan.timezone", "America/New_York")
	v.SetDefault("scan.daily_summary_hour", 16)

	// Scoring defaults mirror the engine defaults
	def := engine.DefaultConfig()
	v.SetDefault("scoring.weights.options", def.Weights.Options)
	v.SetDefault("scoring.weights.attention", def.Weights.Attention)
	v.SetDefault("scoring.weights.fact", def.Weights.Fact)
	v.SetDefault("scoring.confluence_bonus", def.ConfluenceBonus)
	v.SetDefault("scoring.noise_penalty_max", def.NoisePenaltyMax)
	v.SetDefault("scoring.cause_threshold_psi", 5.0)
	v.SetDefault("scoring.alert_threshold_psi", 7.0)
	v.SetDefault("scoring.price_change_trigger", 2.0)
	v.SetDefault("scoring.volume_ratio_trigger", 3.0)

	// Collector defaults
	v.SetDefault("collector.timeout", "15s")
	v.SetDefault("collector.max_retries", 3)
	v.SetDefault("collector.retry_delay_base", "1s")
	v.SetDefault("collector.news_window", "24h")
	v.SetDefault("collector.requests_per_second", 1.0)

	// Summarizer defaults
	v.SetDefault("summarizer.enabled", false)
	v.SetDefault("summarizer.model", "gpt-4o-mini")
	v.SetDefault("summarizer.timeout", "15s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/sentinel.db")

	// Alerts defaults
	v.SetDefault("alerts.cooldown", "30m")
	v.SetDefault("alerts.noise_max_per_day", 3)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if len(c.Watchlist) == 0 {
		return fmt.Errorf("watchlist must contain at least one ticker")
	}
	seen := make(map[string]bool)
	for _, w := range c.Watchlist {
		if w.Ticker == "" {
			return fmt.Errorf("watchlist entries must have a ticker")
		}
		if seen[w.Ticker] {
			return fmt.Errorf("duplicate watchlist ticker: %s", w.Ticker)
		}
		seen[w.Ticker] = true
	}

	if c.Scan.Interval < time.Minute {
		return fmt.Errorf("scan.interval must be at least 1 minute")
	}
	if _, err := time.LoadLocation(c.Scan.Timezone); err != nil {
		return fmt.Errorf("scan.timezone is invalid: %w", err)
	}
	if c.Scan.DailySummaryHour < 0 || c.Scan.DailySummaryHour > 23 {
		return fmt.Errorf("scan.daily_summary_hour must be within 0-23")
	}

	// The engine re-validates at construction; checking here keeps config
	// errors together before anything is wired up.
	engineCfg := c.EngineConfig()
	if err := engineCfg.Validate(); err != nil {
		return fmt.Errorf("invalid scoring config: %w", err)
	}
	if c.Scoring.CauseThresholdPSI < 0 || c.Scoring.CauseThresholdPSI > 10 {
		return fmt.Errorf("scoring.cause_threshold_psi must be within 0-10")
	}
	if c.Scoring.AlertThresholdPSI < 0 || c.Scoring.AlertThresholdPSI > 10 {
		return fmt.Errorf("scoring.alert_threshold_psi must be within 0-10")
	}

	if c.Collector.Timeout <= 0 {
		return fmt.Errorf("collector.timeout must be positive")
	}
	if c.Collector.RequestsPerSecond <= 0 {
		return fmt.Errorf("collector.requests_per_second must be positive")
	}

	if c.Summarizer.Enabled && c.Summarizer.APIKey == "" {
		return fmt.Errorf("summarizer.api_key is required when summarizer is enabled")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	if c.Alerts.Cooldown < 0 {
		return fmt.Errorf("alerts.cooldown must not be negative")
	}
	if c.Alerts.NoiseMaxPerDay < 0 {
		return fmt.Errorf("alerts.noise_max_per_day must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// EngineConfig builds the full scoring engine configuration: built-in
// defaults with the tunable overrides from the scoring section applied.
func (c *Config) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Weights = c.Scoring.Weights
	cfg.ConfluenceBonus = c.Scoring.ConfluenceBonus
	cfg.NoisePenaltyMax = c.Scoring.NoisePenaltyMax
	return cfg
}

// WatchMap returns the watchlist indexed by ticker for quick lookups.
func (c *Config) WatchMap() map[string]WatchItem {
	m := make(map[string]WatchItem, len(c.Watchlist))
	for _, w := range c.Watchlist {
		m[w.Ticker] = w
	}
	return m
}
