// Package config provides configuration management for the signal bot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	apperrors "signal-trader/internal/errors"
)

// Config holds all application configuration. It is loaded once at startup
// and treated as immutable afterwards: every consumer receives it explicitly.
type Config struct {
	MetaAPI  MetaAPIConfig  `mapstructure:"metaapi"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Trading  TradingConfig  `mapstructure:"trading"`
}

// MetaAPIConfig holds credentials and endpoints for the remote trading
// account API.
type MetaAPIConfig struct {
	APIToken        string        `mapstructure:"api_token"`
	AccountID       string        `mapstructure:"account_id"`
	ProvisioningURL string        `mapstructure:"provisioning_url"`
	ClientURL       string        `mapstructure:"client_url"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	SyncTimeout     time.Duration `mapstructure:"sync_timeout"`
}

// TelegramConfig holds the bot credentials and the single identity allowed
// to submit signals.
type TelegramConfig struct {
	BotToken    string        `mapstructure:"bot_token"`
	AllowedUser string        `mapstructure:"allowed_user"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// TradingConfig holds trading parameters.
type TradingConfig struct {
	RiskFactor float64 `mapstructure:"risk_factor"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/signal-trader"
	}
	return filepath.Join(home, ".config", "signal-trader")
}

// Load loads configuration from the specified directory, falling back to the
// default config directory, then applies environment overrides and validates
// the result. A missing config file is not an error: the environment alone
// can carry a complete configuration.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("metaapi.provisioning_url", "https://mt-provisioning-api-v1.agiliumtrade.agiliumtrade.ai")
	v.SetDefault("metaapi.client_url", "https://mt-client-api-v1.agiliumtrade.agiliumtrade.ai")
	v.SetDefault("metaapi.poll_interval", 5*time.Second)
	v.SetDefault("metaapi.connect_timeout", 5*time.Minute)
	v.SetDefault("metaapi.sync_timeout", 2*time.Minute)
	v.SetDefault("telegram.poll_timeout", 30*time.Second)
	v.SetDefault("trading.risk_factor", 0.01)
}

// applyEnvOverrides layers the environment variables over the file values.
// The variable names match the ones the bot has always been deployed with.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.MetaAPI.APIToken = v
	}
	if v := os.Getenv("ACCOUNT_ID"); v != "" {
		cfg.MetaAPI.AccountID = v
	}
	if v := os.Getenv("TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_USER"); v != "" {
		cfg.Telegram.AllowedUser = v
	}
	if v := os.Getenv("RISK_FACTOR"); v != "" {
		risk, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing RISK_FACTOR %q: %w", v, err)
		}
		cfg.Trading.RiskFactor = risk
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.RiskFactor <= 0 || c.Trading.RiskFactor >= 1 {
		return fmt.Errorf("%w: risk_factor must be in (0, 1), got %v",
			apperrors.ErrConfigInvalid, c.Trading.RiskFactor)
	}
	if c.MetaAPI.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", apperrors.ErrConfigInvalid)
	}
	if c.MetaAPI.ConnectTimeout <= 0 || c.MetaAPI.SyncTimeout <= 0 {
		return fmt.Errorf("%w: connect_timeout and sync_timeout must be positive", apperrors.ErrConfigInvalid)
	}
	return nil
}

// ValidateForTrading checks that the credentials needed to reach the remote
// account and Telegram are present. Offline commands skip this check.
func (c *Config) ValidateForTrading() error {
	if c.MetaAPI.APIToken == "" {
		return fmt.Errorf("%w: metaapi api_token is required (env API_KEY)", apperrors.ErrConfigInvalid)
	}
	if c.MetaAPI.AccountID == "" {
		return fmt.Errorf("%w: metaapi account_id is required (env ACCOUNT_ID)", apperrors.ErrConfigInvalid)
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("%w: telegram bot_token is required (env TOKEN)", apperrors.ErrConfigInvalid)
	}
	if c.Telegram.AllowedUser == "" {
		return fmt.Errorf("%w: telegram allowed_user is required (env TELEGRAM_USER)", apperrors.ErrConfigInvalid)
	}
	return nil
}
