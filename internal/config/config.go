// Package config loads and validates the bot configuration from a JSON file,
// with credentials supplied through environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	boterrors "github.com/quantbay/forecast-bot/internal/errors"
	"github.com/quantbay/forecast-bot/internal/exchange"
	"github.com/quantbay/forecast-bot/internal/risk"
)

// Duration wraps time.Duration so intervals can be written as "1m" or "30s"
// in the config file.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// TradingConfig holds the cycle parameters.
type TradingConfig struct {
	Symbols       []string `json:"symbols"`
	CycleInterval Duration `json:"cycle_interval"`
	KlineInterval string   `json:"kline_interval"`
	Lookback      int      `json:"lookback"`
	BalanceAsset  string   `json:"balance_asset"`
}

// ModelConfig locates the forecasting model.
type ModelConfig struct {
	Path       string `json:"path"`
	WindowSize int    `json:"window_size"`
}

// MonitoringConfig controls the metrics and health endpoints.
type MonitoringConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// NotificationsConfig controls operator alerting. Credentials come from the
// environment, never from the file.
type NotificationsConfig struct {
	TelegramEnabled bool   `json:"telegram_enabled"`
	TelegramToken   string `json:"-"`
	TelegramChatID  string `json:"-"`
}

// JournalConfig controls the trade journal workbook.
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

// Config is the root configuration.
type Config struct {
	Exchange      exchange.ExchangeConfig `json:"exchange"`
	Trading       TradingConfig           `json:"trading"`
	Risk          risk.Config             `json:"risk"`
	Model         ModelConfig             `json:"model"`
	Monitoring    MonitoringConfig        `json:"monitoring"`
	Notifications NotificationsConfig     `json:"notifications"`
	Journal       JournalConfig           `json:"journal"`
	Logging       LoggingConfig           `json:"logging"`
}

// LoadConfig reads the JSON file at path, applies defaults and environment
// overrides, and validates the result. Any failure is a fatal configuration
// error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, boterrors.NewConfigError("config", "read_file",
			fmt.Sprintf("failed to read config file %s: %v", path, err))
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, boterrors.NewConfigError("config", "parse",
			fmt.Sprintf("failed to parse config file %s: %v", path, err))
	}

	cfg.setDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Trading.CycleInterval.Duration == 0 {
		c.Trading.CycleInterval.Duration = time.Minute
	}
	if c.Trading.KlineInterval == "" {
		c.Trading.KlineInterval = "5m"
	}
	if c.Trading.Lookback == 0 {
		c.Trading.Lookback = 200
	}
	if c.Trading.BalanceAsset == "" {
		c.Trading.BalanceAsset = "USDT"
	}
	if c.Model.WindowSize == 0 {
		c.Model.WindowSize = 30
	}
	if c.Monitoring.Port == 0 {
		c.Monitoring.Port = 8080
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "trades.xlsx"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// applyEnvOverrides pulls credentials from the environment. Values in the
// environment always win over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BYBIT_API_KEY"); v != "" {
		if c.Exchange.Bybit == nil {
			c.Exchange.Bybit = &exchange.BybitConfig{}
		}
		c.Exchange.Bybit.APIKey = v
	}
	if v := os.Getenv("BYBIT_API_SECRET"); v != "" {
		if c.Exchange.Bybit == nil {
			c.Exchange.Bybit = &exchange.BybitConfig{}
		}
		c.Exchange.Bybit.APISecret = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notifications.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notifications.TelegramChatID = v
	}
}

// Validate checks every startup invariant. The first violation is returned
// as a fatal configuration error.
func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return boterrors.NewConfigError("config", "validate", "trading.symbols must not be empty")
	}
	seen := make(map[string]bool, len(c.Trading.Symbols))
	for _, symbol := range c.Trading.Symbols {
		if strings.TrimSpace(symbol) == "" {
			return boterrors.NewConfigError("config", "validate", "trading.symbols contains an empty symbol")
		}
		if seen[symbol] {
			return boterrors.NewConfigError("config", "validate",
				fmt.Sprintf("duplicate symbol %s in trading.symbols", symbol))
		}
		seen[symbol] = true
	}
	if c.Trading.CycleInterval.Duration <= 0 {
		return boterrors.NewConfigError("config", "validate", "trading.cycle_interval must be positive")
	}
	if c.Trading.Lookback <= 0 {
		return boterrors.NewConfigError("config", "validate", "trading.lookback must be positive")
	}

	if c.Model.Path == "" {
		return boterrors.NewConfigError("config", "validate", "model.path is required")
	}
	if c.Model.WindowSize <= 0 {
		return boterrors.NewConfigError("config", "validate", "model.window_size must be positive")
	}
	if c.Trading.Lookback < c.Model.WindowSize {
		return boterrors.NewConfigError("config", "validate",
			fmt.Sprintf("trading.lookback (%d) must be at least model.window_size (%d)",
				c.Trading.Lookback, c.Model.WindowSize))
	}

	if err := c.Risk.Validate(); err != nil {
		return boterrors.NewConfigError("config", "validate", err.Error())
	}

	if c.Exchange.Name == "" {
		return boterrors.NewConfigError("config", "validate", "exchange.name is required")
	}

	if c.Monitoring.Enabled && (c.Monitoring.Port < 1 || c.Monitoring.Port > 65535) {
		return boterrors.NewConfigError("config", "validate",
			fmt.Sprintf("monitoring.port %d out of range", c.Monitoring.Port))
	}

	if c.Notifications.TelegramEnabled {
		if c.Notifications.TelegramToken == "" || c.Notifications.TelegramChatID == "" {
			return boterrors.NewConfigError("config", "validate",
				"telegram notifications enabled but TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID is not set")
		}
	}

	return nil
}
