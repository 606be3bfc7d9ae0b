package adapters

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbay/forecast-bot/internal/exchange"
)

func TestValidateConfig(t *testing.T) {
	f := NewFactory(zerolog.Nop())

	valid := exchange.ExchangeConfig{
		Name:  "bybit",
		Bybit: &exchange.BybitConfig{APIKey: "key", APISecret: "secret"},
	}
	assert.NoError(t, f.ValidateConfig(valid))

	tests := []struct {
		name   string
		config exchange.ExchangeConfig
	}{
		{"missing name", exchange.ExchangeConfig{}},
		{"unsupported exchange", exchange.ExchangeConfig{Name: "binance"}},
		{"missing bybit config", exchange.ExchangeConfig{Name: "bybit"}},
		{"missing credentials", exchange.ExchangeConfig{Name: "bybit", Bybit: &exchange.BybitConfig{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, f.ValidateConfig(tt.config))
		})
	}
}

func TestCreateExchange(t *testing.T) {
	f := NewFactory(zerolog.Nop())

	exch, err := f.CreateExchange(exchange.ExchangeConfig{
		Name:  "Bybit",
		Bybit: &exchange.BybitConfig{APIKey: "key", APISecret: "secret", Testnet: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bybit", exch.GetName())
	assert.Equal(t, "testnet", exch.GetEnvironment())
	assert.False(t, exch.IsConnected())

	_, err = f.CreateExchange(exchange.ExchangeConfig{Name: "kraken"})
	assert.Error(t, err)
}
