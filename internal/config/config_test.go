package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/quantbay/forecast-bot/internal/errors"
	"github.com/quantbay/forecast-bot/internal/exchange"
	"github.com/quantbay/forecast-bot/internal/risk"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `{
  "exchange": {
    "name": "bybit",
    "bybit": {"api_key": "key", "api_secret": "secret", "testnet": true}
  },
  "trading": {
    "symbols": ["BTCUSDT", "ETHUSDT"],
    "cycle_interval": "1m",
    "kline_interval": "5m",
    "lookback": 120,
    "balance_asset": "USDT"
  },
  "risk": {
    "risk_fraction": 0.01,
    "stop_loss_multiplier": 2,
    "take_profit_multiplier": 3
  },
  "model": {"path": "model.onnx", "window_size": 30},
  "monitoring": {"enabled": true, "port": 9090},
  "journal": {"enabled": true, "path": "trades.xlsx"}
}`

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "bybit", cfg.Exchange.Name)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, time.Minute, cfg.Trading.CycleInterval.Duration)
	assert.Equal(t, 120, cfg.Trading.Lookback)
	assert.Equal(t, 30, cfg.Model.WindowSize)
	assert.Equal(t, 9090, cfg.Monitoring.Port)
	assert.InDelta(t, 0.01, cfg.Risk.RiskFraction, 1e-12)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `{
  "exchange": {"name": "bybit", "bybit": {"api_key": "k", "api_secret": "s"}},
  "trading": {"symbols": ["BTCUSDT"]},
  "risk": {"risk_fraction": 0.01, "stop_loss_multiplier": 2, "take_profit_multiplier": 3},
  "model": {"path": "model.onnx"}
}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Trading.CycleInterval.Duration)
	assert.Equal(t, "5m", cfg.Trading.KlineInterval)
	assert.Equal(t, 200, cfg.Trading.Lookback)
	assert.Equal(t, "USDT", cfg.Trading.BalanceAsset)
	assert.Equal(t, 30, cfg.Model.WindowSize)
	assert.Equal(t, 8080, cfg.Monitoring.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, boterrors.ErrorCategoryConfig, boterrors.CategoryOf(err))
}

func TestLoadConfigMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"exchange": `)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Equal(t, boterrors.ErrorCategoryConfig, boterrors.CategoryOf(err))
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "env-key")
	t.Setenv("BYBIT_API_SECRET", "env-secret")

	path := writeConfig(t, validConfig)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Exchange.Bybit.APIKey)
	assert.Equal(t, "env-secret", cfg.Exchange.Bybit.APISecret)
}

func TestValidateFailures(t *testing.T) {
	base := func() *Config {
		return &Config{
			Exchange: exchange.ExchangeConfig{
				Name:  "bybit",
				Bybit: &exchange.BybitConfig{APIKey: "k", APISecret: "s"},
			},
			Trading: TradingConfig{
				Symbols:       []string{"BTCUSDT"},
				CycleInterval: Duration{time.Minute},
				KlineInterval: "5m",
				Lookback:      120,
				BalanceAsset:  "USDT",
			},
			Risk:  risk.Config{RiskFraction: 0.01, StopLossMultiplier: 2, TakeProfitMultiplier: 3},
			Model: ModelConfig{Path: "model.onnx", WindowSize: 30},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Trading.Symbols = nil }},
		{"blank symbol", func(c *Config) { c.Trading.Symbols = []string{"BTCUSDT", " "} }},
		{"duplicate symbol", func(c *Config) { c.Trading.Symbols = []string{"BTCUSDT", "BTCUSDT"} }},
		{"zero interval", func(c *Config) { c.Trading.CycleInterval = Duration{} }},
		{"negative lookback", func(c *Config) { c.Trading.Lookback = -1 }},
		{"no model path", func(c *Config) { c.Model.Path = "" }},
		{"lookback below window", func(c *Config) { c.Trading.Lookback = 10 }},
		{"bad risk fraction", func(c *Config) { c.Risk.RiskFraction = 2 }},
		{"no exchange name", func(c *Config) { c.Exchange.Name = "" }},
		{"bad monitoring port", func(c *Config) { c.Monitoring.Enabled = true; c.Monitoring.Port = 70000 }},
		{"telegram without credentials", func(c *Config) { c.Notifications.TelegramEnabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, boterrors.ErrorCategoryConfig, boterrors.CategoryOf(err))
		})
	}
}

func TestDurationRoundTrip(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"90s"`)))
	assert.Equal(t, 90*time.Second, d.Duration)

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))

	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`42`)))
}
