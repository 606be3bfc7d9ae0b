package adapters

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quantbay/forecast-bot/internal/exchange"
	"github.com/quantbay/forecast-bot/internal/exchange/bybit"
	"github.com/quantbay/forecast-bot/pkg/types"
)

// BybitAdapter implements the Exchange interface for Bybit.
type BybitAdapter struct {
	client    *bybit.Client
	config    *exchange.BybitConfig
	logger    zerolog.Logger
	stream    *exchange.KlineStream
	connected bool
}

// NewBybitAdapter creates a new Bybit adapter instance.
func NewBybitAdapter(config *exchange.BybitConfig, logger zerolog.Logger) (*BybitAdapter, error) {
	if config == nil {
		return nil, &exchange.ExchangeError{
			Code:    "MISSING_CONFIG",
			Message: "Bybit configuration is required",
		}
	}

	client := bybit.NewClient(bybit.Config{
		APIKey:    config.APIKey,
		APISecret: config.APISecret,
		Testnet:   config.Testnet,
		Demo:      config.Demo,
	})

	return &BybitAdapter{
		client: client,
		config: config,
		logger: logger.With().Str("component", "bybit").Logger(),
	}, nil
}

// GetName returns the exchange name.
func (b *BybitAdapter) GetName() string {
	return "Bybit"
}

// GetEnvironment returns the current environment string.
func (b *BybitAdapter) GetEnvironment() string {
	return b.client.GetEnvironment()
}

// Connect verifies connectivity with a lightweight market data request.
func (b *BybitAdapter) Connect(ctx context.Context) error {
	_, err := b.client.GetKlines(ctx, bybit.KlineParams{
		Category: b.category(),
		Symbol:   "BTCUSDT",
		Interval: bybit.Interval1h,
		Limit:    1,
	})
	if err != nil {
		return &exchange.ExchangeError{
			Code:        "CONNECTION_FAILED",
			Message:     "failed to connect to Bybit",
			Details:     err.Error(),
			IsRetryable: true,
		}
	}

	b.connected = true
	return nil
}

// Disconnect closes the connection to the exchange.
func (b *BybitAdapter) Disconnect() error {
	b.connected = false
	if b.stream != nil {
		return b.stream.Close()
	}
	return nil
}

// IsConnected returns whether the adapter is connected.
func (b *BybitAdapter) IsConnected() bool {
	return b.connected
}

// GetKlines retrieves candle history, oldest first.
func (b *BybitAdapter) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	klines, err := b.client.GetKlines(ctx, bybit.KlineParams{
		Category: b.category(),
		Symbol:   symbol,
		Interval: convertInterval(interval),
		Limit:    limit,
	})
	if err != nil {
		return nil, b.convertError(err)
	}

	result := make([]types.OHLCV, len(klines))
	for i, k := range klines {
		result[i] = types.OHLCV{
			Timestamp: k.StartTime,
			Open:      k.OpenPrice,
			High:      k.HighPrice,
			Low:       k.LowPrice,
			Close:     k.ClosePrice,
			Volume:    k.Volume,
		}
	}
	return result, nil
}

// SubscribeKlines opens the public kline stream for a symbol.
func (b *BybitAdapter) SubscribeKlines(ctx context.Context, symbol, interval string, onUpdate func(types.OHLCV)) error {
	if b.stream == nil {
		stream, err := exchange.NewKlineStream(b.streamURL(), b.logger)
		if err != nil {
			return b.convertError(err)
		}
		b.stream = stream
	}
	return b.stream.Subscribe(ctx, symbol, string(convertInterval(interval)), onUpdate)
}

// GetTradableBalance returns the free balance available for new positions.
func (b *BybitAdapter) GetTradableBalance(ctx context.Context, asset string) (float64, error) {
	balance, err := b.client.GetTradableBalance(ctx, bybit.AccountTypeUnified, asset)
	if err != nil {
		return 0, b.convertError(err)
	}
	return balance, nil
}

// PlaceMarketOrder submits a market order and returns its execution report.
func (b *BybitAdapter) PlaceMarketOrder(ctx context.Context, params exchange.OrderParams) (*exchange.Order, error) {
	order, err := b.client.PlaceMarketOrder(ctx, b.category(), params.Symbol, bybit.OrderSide(params.Side), params.Quantity)
	if err != nil {
		return nil, b.convertError(err)
	}

	// The placement response often omits execution details; fetch the final
	// order record so the caller sees the actual fill.
	if order.AvgPrice == "" || order.CumExecQty == "" {
		if filled, err := b.client.GetOrder(ctx, b.category(), params.Symbol, order.OrderID); err == nil {
			order = filled
		}
	}

	return convertOrder(order), nil
}

// PlaceBracketOrder attaches the stop-loss/take-profit pair to the open
// position in a single linked request.
func (b *BybitAdapter) PlaceBracketOrder(ctx context.Context, params exchange.BracketParams) error {
	tp := strconv.FormatFloat(params.TakeProfit, 'f', -1, 64)
	sl := strconv.FormatFloat(params.StopLoss, 'f', -1, 64)

	if err := b.client.SetTradingStop(ctx, b.category(), params.Symbol, tp, sl); err != nil {
		return b.convertError(err)
	}
	return nil
}

func (b *BybitAdapter) category() string {
	if b.config.Category != "" {
		return b.config.Category
	}
	return "linear"
}

func (b *BybitAdapter) streamURL() string {
	host := "stream.bybit.com"
	if b.config.Testnet || b.config.Demo {
		host = "stream-testnet.bybit.com"
	}
	return fmt.Sprintf("wss://%s/v5/public/%s", host, b.category())
}

// convertError maps Bybit errors into standardized exchange errors.
func (b *BybitAdapter) convertError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case bybit.IsInsufficientBalanceError(err):
		return exchange.ErrInsufficientBalance
	case bybit.IsAuthenticationError(err):
		return exchange.ErrAuthenticationFailed
	case bybit.IsRetryableError(err):
		return &exchange.ExchangeError{
			Code:        "TEMPORARY_FAILURE",
			Message:     "temporary exchange failure",
			Details:     err.Error(),
			IsRetryable: true,
		}
	}

	return &exchange.ExchangeError{
		Code:    "EXCHANGE_ERROR",
		Message: "exchange request failed",
		Details: err.Error(),
	}
}

func convertOrder(o *bybit.Order) *exchange.Order {
	return &exchange.Order{
		OrderID:      o.OrderID,
		Symbol:       o.Symbol,
		Side:         exchange.OrderSide(o.Side),
		OrderType:    exchange.OrderType(o.OrderType),
		Quantity:     o.Qty,
		Price:        o.Price,
		CumExecQty:   o.CumExecQty,
		CumExecValue: o.CumExecValue,
		AvgPrice:     o.AvgPrice,
		OrderStatus:  o.OrderStatus,
		CreatedTime:  o.CreatedTime,
		UpdatedTime:  o.UpdatedTime,
	}
}

// convertInterval maps common interval notation ("5m", "1h") to Bybit's
// wire format ("5", "60").
func convertInterval(interval string) bybit.KlineInterval {
	switch strings.ToLower(interval) {
	case "1m":
		return bybit.Interval1m
	case "3m":
		return bybit.Interval3m
	case "5m":
		return bybit.Interval5m
	case "15m":
		return bybit.Interval15m
	case "30m":
		return bybit.Interval30m
	case "1h":
		return bybit.Interval1h
	case "4h":
		return bybit.Interval4h
	case "1d":
		return bybit.Interval1d
	default:
		return bybit.KlineInterval(interval)
	}
}
