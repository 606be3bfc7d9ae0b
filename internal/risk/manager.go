// Package risk owns the shared account balance. Every read and reservation
// goes through the Manager's lock so that concurrent symbol analyses can
// never size positions against a stale balance.
package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	boterrors "github.com/quantbay/forecast-bot/internal/errors"
	"github.com/quantbay/forecast-bot/internal/exchange"
)

// ErrInsufficientBalance is returned by Reserve when no free capital is
// available for a new position.
var ErrInsufficientBalance = errors.New("insufficient free balance")

// Config holds the process-wide risk parameters. Loaded once at startup and
// never mutated.
type Config struct {
	// RiskFraction is the fraction of free balance risked per position,
	// in (0, 1].
	RiskFraction float64 `json:"risk_fraction"`

	// StopLossMultiplier and TakeProfitMultiplier scale RiskFraction into
	// the distance of the protective levels from the entry price.
	StopLossMultiplier   float64 `json:"stop_loss_multiplier"`
	TakeProfitMultiplier float64 `json:"take_profit_multiplier"`

	// MinNotional is the smallest position size worth opening, in the
	// balance asset. Zero disables the floor.
	MinNotional float64 `json:"min_notional"`
}

// Validate rejects parameter combinations that would break the bracket
// ordering invariant.
func (c Config) Validate() error {
	if c.RiskFraction <= 0 || c.RiskFraction > 1 {
		return fmt.Errorf("risk_fraction must be in (0, 1], got %v", c.RiskFraction)
	}
	if c.StopLossMultiplier <= 0 {
		return fmt.Errorf("stop_loss_multiplier must be positive, got %v", c.StopLossMultiplier)
	}
	if c.StopLossMultiplier*c.RiskFraction >= 1 {
		return fmt.Errorf("stop_loss_multiplier x risk_fraction must stay below 1, got %v", c.StopLossMultiplier*c.RiskFraction)
	}
	if c.TakeProfitMultiplier <= 0 {
		return fmt.Errorf("take_profit_multiplier must be positive, got %v", c.TakeProfitMultiplier)
	}
	if c.TakeProfitMultiplier*c.RiskFraction >= 1 {
		return fmt.Errorf("take_profit_multiplier x risk_fraction must stay below 1, got %v", c.TakeProfitMultiplier*c.RiskFraction)
	}
	if c.MinNotional < 0 {
		return fmt.Errorf("min_notional must not be negative, got %v", c.MinNotional)
	}
	return nil
}

// Bracket holds the protective price levels for a position.
type Bracket struct {
	StopLoss   float64
	TakeProfit float64
}

// Manager serializes all access to the account's free balance and places
// protective brackets. It is the only component allowed to read or mutate
// the balance.
type Manager struct {
	cfg      Config
	exchange exchange.Exchange
	asset    string
	logger   zerolog.Logger

	mu       sync.Mutex
	free     float64
	snapshot float64 // free balance at the start of the current cycle
}

// NewManager creates a Manager funded by the exchange balance of asset.
func NewManager(cfg Config, exch exchange.Exchange, asset string, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		exchange: exch,
		asset:    asset,
		logger:   logger.With().Str("component", "risk").Logger(),
	}
}

// SyncBalance refreshes the free balance from the exchange. Called once at
// the start of each cycle, before any reservations.
func (m *Manager) SyncBalance(ctx context.Context) error {
	balance, err := m.exchange.GetTradableBalance(ctx, m.asset)
	if err != nil {
		return fmt.Errorf("failed to sync account balance: %w", err)
	}

	m.mu.Lock()
	m.free = balance
	m.snapshot = balance
	m.mu.Unlock()

	m.logger.Debug().Float64("free_balance", balance).Msg("account balance synced")
	return nil
}

// Snapshot returns the free balance recorded at the last sync.
func (m *Manager) Snapshot() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Free returns the currently unreserved balance.
func (m *Manager) Free() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.free
}

// Reserve sizes a new position against the risk budget and provisionally
// deducts it from the free balance before returning. The read-size-deduct
// sequence runs under one lock, so no two callers can observe the same
// pre-reservation balance.
func (m *Manager) Reserve(side exchange.OrderSide) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.free <= 0 {
		return 0, ErrInsufficientBalance
	}

	size := m.free * m.cfg.RiskFraction
	if size > m.free {
		size = m.free
	}
	if size <= 0 || size < m.cfg.MinNotional {
		return 0, ErrInsufficientBalance
	}

	m.free -= size
	m.logger.Debug().
		Str("side", string(side)).
		Float64("size", size).
		Float64("free_after", m.free).
		Msg("balance reserved")
	return size, nil
}

// Release restores reserved funds after an entry order failed. Never called
// for filled orders; their reservation stays consumed until the next
// balance sync.
func (m *Manager) Release(amount float64) {
	if amount <= 0 {
		return
	}

	m.mu.Lock()
	m.free += amount
	free := m.free
	m.mu.Unlock()

	m.logger.Debug().Float64("amount", amount).Float64("free_after", free).Msg("reservation released")
}

// ComputeBracket derives the protective levels for a position entered at
// entryPrice. For a Buy the stop sits below the entry and the target above;
// for a Sell the two are mirrored.
func (m *Manager) ComputeBracket(side exchange.OrderSide, entryPrice float64) Bracket {
	slDelta := m.cfg.StopLossMultiplier * m.cfg.RiskFraction
	tpDelta := m.cfg.TakeProfitMultiplier * m.cfg.RiskFraction

	if side == exchange.OrderSideBuy {
		return Bracket{
			StopLoss:   entryPrice * (1 - slDelta),
			TakeProfit: entryPrice * (1 + tpDelta),
		}
	}
	return Bracket{
		StopLoss:   entryPrice * (1 + slDelta),
		TakeProfit: entryPrice * (1 - tpDelta),
	}
}

// PlaceBracket submits the linked stop-loss/take-profit pair protecting a
// filled entry. The exchange accepts both legs together or rejects the call
// as a unit; there is no partial bracket and no automatic retry.
func (m *Manager) PlaceBracket(ctx context.Context, symbol string, side exchange.OrderSide, quantity string, entryPrice float64) (Bracket, error) {
	if entryPrice <= 0 {
		return Bracket{}, boterrors.New(boterrors.ErrorCategoryBracket, "risk", "place_bracket",
			fmt.Sprintf("refusing bracket for non-positive entry price %v", entryPrice))
	}

	bracket := m.ComputeBracket(side, entryPrice)
	err := m.exchange.PlaceBracketOrder(ctx, exchange.BracketParams{
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		TakeProfit: bracket.TakeProfit,
		StopLoss:   bracket.StopLoss,
	})
	if err != nil {
		return bracket, boterrors.NewBracketError("risk", "place_bracket", err)
	}

	m.logger.Info().
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("entry_price", entryPrice).
		Float64("stop_loss", bracket.StopLoss).
		Float64("take_profit", bracket.TakeProfit).
		Msg("protective bracket placed")
	return bracket, nil
}
