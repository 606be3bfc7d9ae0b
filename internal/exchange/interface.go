package exchange

import (
	"context"
	"strconv"
	"time"

	"github.com/quantbay/forecast-bot/pkg/types"
)

// Exchange is the venue collaborator consumed by the trading core. The core
// never talks to an exchange SDK directly; everything goes through this
// interface so the orchestrator and executor can be tested against fakes.
type Exchange interface {
	// Exchange identification
	GetName() string
	GetEnvironment() string

	// Connection management
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	// Market data
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error)
	// SubscribeKlines streams candle updates for liveness monitoring only;
	// decisions are always made from GetKlines history.
	SubscribeKlines(ctx context.Context, symbol, interval string, onUpdate func(types.OHLCV)) error

	// Account
	GetTradableBalance(ctx context.Context, asset string) (float64, error)

	// Trading
	PlaceMarketOrder(ctx context.Context, params OrderParams) (*Order, error)
	// PlaceBracketOrder submits the stop-loss/take-profit pair as one linked
	// request: either both legs are accepted together or the call fails as a
	// unit.
	PlaceBracketOrder(ctx context.Context, params BracketParams) error
}

// OrderSide represents buy or sell side (string-based for API compatibility).
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// Opposite returns the closing side for a position opened on s.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType represents supported order types.
type OrderType string

const (
	OrderTypeMarket OrderType = "Market"
	OrderTypeLimit  OrderType = "Limit"
)

// OrderParams represents parameters for placing an entry order.
type OrderParams struct {
	Symbol    string    `json:"symbol"`
	Side      OrderSide `json:"side"`
	Quantity  string    `json:"quantity"`
	OrderType OrderType `json:"order_type"`
	Price     string    `json:"price,omitempty"` // limit orders only
}

// BracketParams represents a linked stop-loss/take-profit pair protecting an
// open position.
type BracketParams struct {
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"` // side of the protected position
	Quantity   string    `json:"quantity"`
	TakeProfit float64   `json:"take_profit"`
	StopLoss   float64   `json:"stop_loss"`
}

// Order represents order information returned by the venue. Quantities and
// prices are kept in the venue's string wire format; use the float helpers
// when doing arithmetic.
type Order struct {
	OrderID      string    `json:"order_id"`
	Symbol       string    `json:"symbol"`
	Side         OrderSide `json:"side"`
	OrderType    OrderType `json:"order_type"`
	Quantity     string    `json:"quantity"`
	Price        string    `json:"price"`
	CumExecQty   string    `json:"cum_exec_qty"`   // cumulative executed quantity
	CumExecValue string    `json:"cum_exec_value"` // cumulative executed value
	AvgPrice     string    `json:"avg_price"`      // average fill price
	OrderStatus  string    `json:"order_status"`
	CreatedTime  time.Time `json:"created_time"`
	UpdatedTime  time.Time `json:"updated_time"`
}

// FillPrice returns the average fill price as a float, or 0 when the venue
// reported no fills.
func (o *Order) FillPrice() float64 {
	return parseFloat(o.AvgPrice)
}

// FilledQty returns the executed quantity as a float, or 0 when nothing
// filled.
func (o *Order) FilledQty() float64 {
	return parseFloat(o.CumExecQty)
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ExchangeError represents standardized errors from exchange adapters.
type ExchangeError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Details     string `json:"details,omitempty"`
	IsRetryable bool   `json:"is_retryable"`
}

func (e *ExchangeError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Common error values returned by adapters.
var (
	ErrInsufficientBalance = &ExchangeError{
		Code:    "INSUFFICIENT_BALANCE",
		Message: "insufficient balance for trade",
	}

	ErrInvalidSymbol = &ExchangeError{
		Code:    "INVALID_SYMBOL",
		Message: "invalid trading symbol",
	}

	ErrConnectionFailed = &ExchangeError{
		Code:        "CONNECTION_FAILED",
		Message:     "failed to connect to exchange",
		IsRetryable: true,
	}

	ErrAuthenticationFailed = &ExchangeError{
		Code:    "AUTHENTICATION_FAILED",
		Message: "API authentication failed",
	}
)
