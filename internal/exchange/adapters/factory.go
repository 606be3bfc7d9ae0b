package adapters

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quantbay/forecast-bot/internal/exchange"
)

// Factory creates exchange instances based on configuration.
type Factory struct {
	logger zerolog.Logger
}

// NewFactory creates a new exchange factory instance.
func NewFactory(logger zerolog.Logger) *Factory {
	return &Factory{logger: logger}
}

// CreateExchange creates an exchange instance based on the provided
// configuration.
func (f *Factory) CreateExchange(config exchange.ExchangeConfig) (exchange.Exchange, error) {
	name := strings.ToLower(strings.TrimSpace(config.Name))

	switch name {
	case "bybit":
		if err := f.ValidateConfig(config); err != nil {
			return nil, err
		}
		return NewBybitAdapter(config.Bybit, f.logger)
	default:
		return nil, &exchange.ExchangeError{
			Code:    "UNSUPPORTED_EXCHANGE",
			Message: fmt.Sprintf("exchange %q is not supported", config.Name),
			Details: "supported exchanges: bybit",
		}
	}
}

// ValidateConfig validates the exchange configuration without creating a
// client.
func (f *Factory) ValidateConfig(config exchange.ExchangeConfig) error {
	name := strings.ToLower(strings.TrimSpace(config.Name))

	switch name {
	case "":
		return &exchange.ExchangeError{
			Code:    "MISSING_EXCHANGE_NAME",
			Message: "exchange name is required",
		}
	case "bybit":
		if config.Bybit == nil {
			return &exchange.ExchangeError{
				Code:    "MISSING_BYBIT_CONFIG",
				Message: "Bybit configuration is required",
			}
		}
		if config.Bybit.APIKey == "" || config.Bybit.APISecret == "" {
			return &exchange.ExchangeError{
				Code:    "MISSING_CREDENTIALS",
				Message: "Bybit API key and secret are required",
			}
		}
		return nil
	default:
		return &exchange.ExchangeError{
			Code:    "UNSUPPORTED_EXCHANGE",
			Message: fmt.Sprintf("exchange %q is not supported", config.Name),
		}
	}
}
