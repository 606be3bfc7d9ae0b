// Package executor turns strategy decisions into venue orders and guarantees
// every filled entry is either protected by a bracket or loudly reported as
// unprotected.
package executor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	boterrors "github.com/quantbay/forecast-bot/internal/errors"
	"github.com/quantbay/forecast-bot/internal/exchange"
	"github.com/quantbay/forecast-bot/internal/risk"
)

// Position describes a filled entry and its protection state.
type Position struct {
	Symbol     string
	Side       exchange.OrderSide
	OrderID    string
	Quantity   float64
	EntryPrice float64
	Size       float64 // reserved quote-currency notional
	Bracket    risk.Bracket
	Protected  bool
	OpenedAt   time.Time
}

// Alerter receives elevated notifications about positions left without a
// protective bracket.
type Alerter interface {
	AlertUnprotected(ctx context.Context, position *Position, cause error)
}

// TradeJournal records executed trades for offline review.
type TradeJournal interface {
	Record(position *Position) error
}

// Executor places entry orders and their protective brackets. Entry failures
// hand the reservation back to the risk manager; bracket failures never do,
// because the position is already open.
type Executor struct {
	exchange exchange.Exchange
	risk     *risk.Manager
	alerter  Alerter      // optional
	journal  TradeJournal // optional
	logger   zerolog.Logger
}

// NewExecutor wires an Executor. alerter and journal may be nil.
func NewExecutor(exch exchange.Exchange, riskMgr *risk.Manager, alerter Alerter, journal TradeJournal, logger zerolog.Logger) *Executor {
	return &Executor{
		exchange: exch,
		risk:     riskMgr,
		alerter:  alerter,
		journal:  journal,
		logger:   logger.With().Str("component", "executor").Logger(),
	}
}

// Execute opens a market position of the reserved size and immediately
// protects it with a stop-loss/take-profit bracket derived from the actual
// fill price.
//
// On entry failure the reservation is released and an error is returned. If
// the entry fills but the bracket cannot be placed, Execute still returns
// the position (Protected=false) with a nil error; callers distinguish the
// two via the Protected flag while the failure is alerted at critical
// severity here.
func (e *Executor) Execute(ctx context.Context, symbol string, side exchange.OrderSide, size, referencePrice float64) (*Position, error) {
	if referencePrice <= 0 {
		e.risk.Release(size)
		return nil, boterrors.New(boterrors.ErrorCategoryOrder, "executor", "size_order",
			fmt.Sprintf("non-positive reference price %v for %s", referencePrice, symbol))
	}

	quantity := size / referencePrice
	order, err := e.exchange.PlaceMarketOrder(ctx, exchange.OrderParams{
		Symbol:    symbol,
		Side:      side,
		Quantity:  formatQuantity(quantity),
		OrderType: exchange.OrderTypeMarket,
	})
	if err != nil {
		e.risk.Release(size)
		return nil, boterrors.NewOrderError("executor", "place_entry", err)
	}

	fillPrice := order.FillPrice()
	fillQty := order.FilledQty()
	if fillPrice <= 0 || fillQty <= 0 {
		e.risk.Release(size)
		return nil, boterrors.New(boterrors.ErrorCategoryOrder, "executor", "confirm_fill",
			fmt.Sprintf("order %s for %s reported no fill (price=%q qty=%q)", order.OrderID, symbol, order.AvgPrice, order.CumExecQty))
	}

	position := &Position{
		Symbol:     symbol,
		Side:       side,
		OrderID:    order.OrderID,
		Quantity:   fillQty,
		EntryPrice: fillPrice,
		Size:       size,
		OpenedAt:   time.Now().UTC(),
	}

	e.logger.Info().
		Str("symbol", symbol).
		Str("side", string(side)).
		Str("order_id", order.OrderID).
		Float64("fill_price", fillPrice).
		Float64("quantity", fillQty).
		Msg("entry order filled")

	bracket, err := e.risk.PlaceBracket(ctx, symbol, side, order.CumExecQty, fillPrice)
	if err != nil {
		// Position is open without protection. The reservation stays
		// consumed; the operator must intervene.
		e.logger.Error().
			Err(err).
			Str("symbol", symbol).
			Str("order_id", order.OrderID).
			Float64("fill_price", fillPrice).
			Bool("critical", true).
			Msg("POSITION OPEN WITHOUT PROTECTIVE BRACKET")
		if e.alerter != nil {
			e.alerter.AlertUnprotected(ctx, position, err)
		}
		e.record(position)
		return position, nil
	}

	position.Bracket = bracket
	position.Protected = true
	e.record(position)
	return position, nil
}

func (e *Executor) record(position *Position) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Record(position); err != nil {
		e.logger.Warn().Err(err).Str("symbol", position.Symbol).Msg("failed to journal trade")
	}
}

// formatQuantity renders a base-asset quantity for the venue. Eight decimals
// covers the finest quantity step Bybit linear contracts use.
func formatQuantity(qty float64) string {
	return strconv.FormatFloat(qty, 'f', 8, 64)
}
