// Package orchestrator drives the periodic analysis cycle: one tick fans out
// a concurrent task per symbol, each task walks fetch-predict-decide-execute,
// and every task ends in exactly one reported outcome.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	boterrors "github.com/quantbay/forecast-bot/internal/errors"
	"github.com/quantbay/forecast-bot/internal/exchange"
	"github.com/quantbay/forecast-bot/internal/executor"
	"github.com/quantbay/forecast-bot/internal/monitoring"
	"github.com/quantbay/forecast-bot/internal/predictor"
	"github.com/quantbay/forecast-bot/internal/risk"
	"github.com/quantbay/forecast-bot/internal/strategy"
	"github.com/quantbay/forecast-bot/pkg/types"
)

// Outcome is the terminal result of one symbol's analysis task.
type Outcome string

const (
	OutcomeNoAction            Outcome = "no_action"
	OutcomeExecutedProtected   Outcome = "executed_protected"
	OutcomeExecutedUnprotected Outcome = "executed_unprotected"
	OutcomeFetchFailed         Outcome = "fetch_failed"
	OutcomePredictFailed       Outcome = "predict_failed"
	OutcomeOrderFailed         Outcome = "order_failed"
	OutcomeSkippedCycle        Outcome = "skipped_cycle"
)

// Config holds the cycle parameters.
type Config struct {
	// Symbols analyzed each cycle, e.g. ["BTCUSDT", "ETHUSDT"].
	Symbols []string

	// Interval between cycle starts.
	Interval time.Duration

	// KlineInterval is the candle timeframe fetched for analysis,
	// e.g. "5m".
	KlineInterval string

	// Lookback is the number of candles fetched per symbol. Must be at
	// least the model's input window.
	Lookback int
}

// Orchestrator runs the trading loop. Ticks never overlap: if a cycle is
// still in flight when the next tick fires, the tick is dropped.
type Orchestrator struct {
	cfg       Config
	exchange  exchange.Exchange
	predictor predictor.Predictor
	risk      *risk.Manager
	executor  *executor.Executor
	health    *monitoring.HealthChecker // optional
	logger    zerolog.Logger

	inFlight atomic.Bool

	mu     sync.Mutex
	states map[string]TaskState
}

// NewOrchestrator wires the trading loop. health may be nil.
func NewOrchestrator(cfg Config, exch exchange.Exchange, pred predictor.Predictor, riskMgr *risk.Manager, exec *executor.Executor, health *monitoring.HealthChecker, logger zerolog.Logger) *Orchestrator {
	states := make(map[string]TaskState, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		states[symbol] = StateIdle
	}
	return &Orchestrator{
		cfg:       cfg,
		exchange:  exch,
		predictor: pred,
		risk:      riskMgr,
		executor:  exec,
		health:    health,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
		states:    states,
	}
}

// Run executes one cycle immediately, then one per interval until ctx is
// canceled. A cycle already in flight finishes even after cancellation; Run
// returns once the loop has stopped scheduling.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info().
		Strs("symbols", o.cfg.Symbols).
		Dur("interval", o.cfg.Interval).
		Msg("trading loop started")

	o.RunCycle(ctx)

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info().Msg("trading loop stopped")
			return ctx.Err()
		case <-ticker.C:
			o.RunCycle(ctx)
		}
	}
}

// RunCycle performs one full analysis cycle, or drops it when the previous
// cycle has not finished.
func (o *Orchestrator) RunCycle(ctx context.Context) {
	if !o.inFlight.CompareAndSwap(false, true) {
		monitoring.RecordCycleSkipped()
		for _, symbol := range o.cfg.Symbols {
			o.reportOutcome(symbol, OutcomeSkippedCycle, nil)
		}
		o.logger.Warn().Msg("previous cycle still running, skipping tick")
		return
	}
	defer o.inFlight.Store(false)

	monitoring.RecordCycleStart()
	start := time.Now()

	// One balance sync per cycle; every reservation in this cycle draws
	// from this snapshot.
	if err := o.risk.SyncBalance(ctx); err != nil {
		monitoring.RecordError(string(boterrors.ErrorCategoryBalance))
		o.logger.Error().Err(err).Msg("balance sync failed, cycle aborted")
		return
	}
	monitoring.UpdateFreeBalance(o.risk.Free())

	var wg sync.WaitGroup
	for _, symbol := range o.cfg.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			o.runTask(ctx, symbol)
		}(symbol)
	}
	wg.Wait()

	monitoring.UpdateFreeBalance(o.risk.Free())
	monitoring.UpdateReserved(o.risk.Snapshot() - o.risk.Free())
	if o.health != nil {
		o.health.MarkCycle()
	}
	o.logger.Info().Dur("elapsed", time.Since(start)).Msg("cycle complete")
}

// runTask executes one symbol's analysis with panic isolation: a panic in
// one task is reported as its failure and never touches sibling tasks.
func (o *Orchestrator) runTask(ctx context.Context, symbol string) {
	defer func() {
		if r := recover(); r != nil {
			o.setState(symbol, StateFailed)
			o.reportOutcome(symbol, OutcomePredictFailed,
				fmt.Errorf("analysis task panicked: %v", r))
		}
	}()

	outcome, err := o.analyzeSymbol(ctx, symbol)
	o.reportOutcome(symbol, outcome, err)
}

func (o *Orchestrator) analyzeSymbol(ctx context.Context, symbol string) (Outcome, error) {
	o.setState(symbol, StateFetching)
	klines, err := o.exchange.GetKlines(ctx, symbol, o.cfg.KlineInterval, o.cfg.Lookback)
	if err != nil {
		o.setState(symbol, StateFailed)
		return OutcomeFetchFailed, boterrors.NewFetchError("orchestrator", "get_klines", err)
	}
	if len(klines) < o.cfg.Lookback {
		o.setState(symbol, StateFailed)
		return OutcomeFetchFailed, boterrors.New(boterrors.ErrorCategoryFetch, "orchestrator", "get_klines",
			fmt.Sprintf("got %d candles for %s, need %d", len(klines), symbol, o.cfg.Lookback))
	}

	window := types.NewPriceWindow(klines)
	closes := window.TailCloses(o.predictor.WindowSize())
	if len(closes) < o.predictor.WindowSize() {
		o.setState(symbol, StateFailed)
		return OutcomeFetchFailed, boterrors.New(boterrors.ErrorCategoryFetch, "orchestrator", "build_window",
			fmt.Sprintf("window too short for %s: %d closes, model needs %d", symbol, len(closes), o.predictor.WindowSize()))
	}

	o.setState(symbol, StatePredicting)
	predictStart := time.Now()
	predicted, err := o.predictor.Predict(ctx, closes)
	if err != nil {
		o.setState(symbol, StateFailed)
		return OutcomePredictFailed, boterrors.NewPredictionError("orchestrator", "predict", err)
	}
	monitoring.RecordPrediction(symbol, predicted, time.Since(predictStart).Seconds())

	o.setState(symbol, StateDeciding)
	decision := strategy.Decide(window, predicted)
	o.logger.Debug().
		Str("symbol", symbol).
		Float64("last_close", window.LastClose()).
		Float64("predicted", predicted).
		Str("decision", decision.String()).
		Msg("decision made")

	if decision == strategy.NoAction {
		o.setState(symbol, StateNoAction)
		return OutcomeNoAction, nil
	}

	side := exchange.OrderSideBuy
	if decision == strategy.Sell {
		side = exchange.OrderSideSell
	}

	o.setState(symbol, StateReserving)
	size, err := o.risk.Reserve(side)
	if err != nil {
		o.setState(symbol, StateFailed)
		return OutcomeOrderFailed, boterrors.Wrap(err, boterrors.ErrorCategoryBalance, "orchestrator", "reserve")
	}

	o.setState(symbol, StateExecuting)
	position, err := o.executor.Execute(ctx, symbol, side, size, window.LastClose())
	if err != nil {
		o.setState(symbol, StateFailed)
		return OutcomeOrderFailed, err
	}

	if !position.Protected {
		o.setState(symbol, StateUnprotected)
		if o.health != nil {
			o.health.MarkUnprotected()
		}
		return OutcomeExecutedUnprotected, nil
	}
	o.setState(symbol, StateProtected)
	return OutcomeExecutedProtected, nil
}

// reportOutcome emits the single terminal record for a symbol's task.
func (o *Orchestrator) reportOutcome(symbol string, outcome Outcome, err error) {
	monitoring.RecordOutcome(symbol, string(outcome))

	event := o.logger.Info()
	if err != nil {
		category := boterrors.CategoryOf(err)
		if category != "" {
			monitoring.RecordError(string(category))
		}
		event = o.logger.Error().Err(err)
	}
	if outcome == OutcomeExecutedUnprotected {
		event = o.logger.Error().Bool("critical", true)
	}
	event.Str("symbol", symbol).Str("outcome", string(outcome)).Msg("task finished")
}

func (o *Orchestrator) setState(symbol string, state TaskState) {
	o.mu.Lock()
	o.states[symbol] = state
	o.mu.Unlock()
}

// States returns a snapshot of each symbol's current task state.
func (o *Orchestrator) States() map[string]TaskState {
	o.mu.Lock()
	defer o.mu.Unlock()
	snapshot := make(map[string]TaskState, len(o.states))
	for symbol, state := range o.states {
		snapshot[symbol] = state
	}
	return snapshot
}
