package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbay/forecast-bot/internal/exchange"
	"github.com/quantbay/forecast-bot/internal/executor"
	"github.com/quantbay/forecast-bot/internal/risk"
	"github.com/quantbay/forecast-bot/pkg/types"
)

const testLookback = 10

// fakeExchange serves canned candles per symbol and records order flow.
type fakeExchange struct {
	mu sync.Mutex

	balance     float64
	syncCalls   int
	klines      map[string][]types.OHLCV
	klineErr    map[string]error
	fetchGate   chan struct{} // when set, GetKlines blocks until closed
	fetchBegan  chan struct{} // signaled once per GetKlines entry
	orders      []exchange.OrderParams
	orderErr    error
	brackets    []exchange.BracketParams
	bracketErr  error
}

func (f *fakeExchange) GetName() string                   { return "fake" }
func (f *fakeExchange) GetEnvironment() string            { return "test" }
func (f *fakeExchange) Connect(ctx context.Context) error { return nil }
func (f *fakeExchange) Disconnect() error                 { return nil }
func (f *fakeExchange) IsConnected() bool                 { return true }

func (f *fakeExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	if f.fetchBegan != nil {
		f.fetchBegan <- struct{}{}
	}
	if f.fetchGate != nil {
		<-f.fetchGate
	}
	if err := f.klineErr[symbol]; err != nil {
		return nil, err
	}
	return f.klines[symbol], nil
}

func (f *fakeExchange) SubscribeKlines(ctx context.Context, symbol, interval string, onUpdate func(types.OHLCV)) error {
	return nil
}

func (f *fakeExchange) GetTradableBalance(ctx context.Context, asset string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCalls++
	return f.balance, nil
}

func (f *fakeExchange) PlaceMarketOrder(ctx context.Context, params exchange.OrderParams) (*exchange.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.orders = append(f.orders, params)
	return &exchange.Order{
		OrderID:     "order-1",
		Symbol:      params.Symbol,
		Side:        params.Side,
		AvgPrice:    "100",
		CumExecQty:  params.Quantity,
		OrderStatus: "Filled",
	}, nil
}

func (f *fakeExchange) PlaceBracketOrder(ctx context.Context, params exchange.BracketParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bracketErr != nil {
		return f.bracketErr
	}
	f.brackets = append(f.brackets, params)
	return nil
}

func (f *fakeExchange) placedOrders() []exchange.OrderParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]exchange.OrderParams(nil), f.orders...)
}

// fakePredictor returns a fixed prediction per symbol-independent window,
// keyed by the window's last close.
type fakePredictor struct {
	window  int
	predict func(closes []float64) (float64, error)
}

func (p *fakePredictor) Predict(ctx context.Context, closes []float64) (float64, error) {
	return p.predict(closes)
}

func (p *fakePredictor) WindowSize() int { return p.window }
func (p *fakePredictor) Close() error    { return nil }

func candles(lastClose float64, n int) []types.OHLCV {
	out := make([]types.OHLCV, n)
	for i := range out {
		out[i] = types.OHLCV{
			Open:      lastClose,
			High:      lastClose + 1,
			Low:       lastClose - 1,
			Close:     lastClose,
			Timestamp: time.Unix(int64(i*60), 0),
		}
	}
	return out
}

func newTestOrchestrator(t *testing.T, exch *fakeExchange, pred *fakePredictor, symbols ...string) (*Orchestrator, *risk.Manager) {
	t.Helper()
	cfg := Config{
		Symbols:       symbols,
		Interval:      time.Minute,
		KlineInterval: "5m",
		Lookback:      testLookback,
	}
	riskCfg := risk.Config{RiskFraction: 0.01, StopLossMultiplier: 2, TakeProfitMultiplier: 3}
	m := risk.NewManager(riskCfg, exch, "USDT", zerolog.Nop())
	exec := executor.NewExecutor(exch, m, nil, nil, zerolog.Nop())
	return NewOrchestrator(cfg, exch, pred, m, exec, nil, zerolog.Nop()), m
}

func TestCycleNoAction(t *testing.T) {
	exch := &fakeExchange{
		balance: 10000,
		klines:  map[string][]types.OHLCV{"BTCUSDT": candles(100, testLookback)},
	}
	pred := &fakePredictor{window: 5, predict: func(closes []float64) (float64, error) {
		return closes[len(closes)-1], nil // equal: hold
	}}
	o, _ := newTestOrchestrator(t, exch, pred, "BTCUSDT")

	o.RunCycle(context.Background())

	assert.Empty(t, exch.placedOrders())
	assert.Equal(t, StateNoAction, o.States()["BTCUSDT"])
}

func TestCycleBuySignalExecutesProtected(t *testing.T) {
	exch := &fakeExchange{
		balance: 10000,
		klines:  map[string][]types.OHLCV{"BTCUSDT": candles(100, testLookback)},
	}
	pred := &fakePredictor{window: 5, predict: func(closes []float64) (float64, error) {
		return closes[len(closes)-1] + 1, nil
	}}
	o, m := newTestOrchestrator(t, exch, pred, "BTCUSDT")

	o.RunCycle(context.Background())

	orders := exch.placedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, exchange.OrderSideBuy, orders[0].Side)
	require.Len(t, exch.brackets, 1)
	assert.Equal(t, StateProtected, o.States()["BTCUSDT"])

	// Reservation consumed: 1% of 10000.
	assert.InDelta(t, 9900, m.Free(), 1e-9)
}

func TestCycleSellSignal(t *testing.T) {
	exch := &fakeExchange{
		balance: 10000,
		klines:  map[string][]types.OHLCV{"ETHUSDT": candles(200, testLookback)},
	}
	pred := &fakePredictor{window: 5, predict: func(closes []float64) (float64, error) {
		return closes[len(closes)-1] - 1, nil
	}}
	o, _ := newTestOrchestrator(t, exch, pred, "ETHUSDT")

	o.RunCycle(context.Background())

	orders := exch.placedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, exchange.OrderSideSell, orders[0].Side)
}

func TestCycleFaultIsolation(t *testing.T) {
	exch := &fakeExchange{
		balance: 10000,
		klines: map[string][]types.OHLCV{
			"ETHUSDT": candles(200, testLookback),
		},
		klineErr: map[string]error{
			"BTCUSDT": errors.New("kline endpoint down"),
		},
	}
	pred := &fakePredictor{window: 5, predict: func(closes []float64) (float64, error) {
		return closes[len(closes)-1] + 1, nil
	}}
	o, _ := newTestOrchestrator(t, exch, pred, "BTCUSDT", "ETHUSDT")

	o.RunCycle(context.Background())

	// BTCUSDT failed to fetch, ETHUSDT still traded.
	orders := exch.placedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, "ETHUSDT", orders[0].Symbol)
	assert.Equal(t, StateFailed, o.States()["BTCUSDT"])
	assert.Equal(t, StateProtected, o.States()["ETHUSDT"])
}

func TestCycleShortHistoryIsFetchFailure(t *testing.T) {
	exch := &fakeExchange{
		balance: 10000,
		klines:  map[string][]types.OHLCV{"BTCUSDT": candles(100, testLookback-1)},
	}
	pred := &fakePredictor{window: 5, predict: func(closes []float64) (float64, error) {
		return closes[len(closes)-1] + 1, nil
	}}
	o, _ := newTestOrchestrator(t, exch, pred, "BTCUSDT")

	o.RunCycle(context.Background())

	assert.Empty(t, exch.placedOrders())
	assert.Equal(t, StateFailed, o.States()["BTCUSDT"])
}

func TestCyclePredictorErrorIsContained(t *testing.T) {
	exch := &fakeExchange{
		balance: 10000,
		klines:  map[string][]types.OHLCV{"BTCUSDT": candles(100, testLookback)},
	}
	pred := &fakePredictor{window: 5, predict: func(closes []float64) (float64, error) {
		return 0, errors.New("inference failed")
	}}
	o, m := newTestOrchestrator(t, exch, pred, "BTCUSDT")

	o.RunCycle(context.Background())

	assert.Empty(t, exch.placedOrders())
	assert.Equal(t, StateFailed, o.States()["BTCUSDT"])
	// No reservation was made for a failed prediction.
	assert.InDelta(t, 10000, m.Free(), 1e-9)
}

func TestCyclePanicInOneTaskDoesNotKillOthers(t *testing.T) {
	exch := &fakeExchange{
		balance: 10000,
		klines: map[string][]types.OHLCV{
			"BTCUSDT": candles(100, testLookback),
			"ETHUSDT": candles(200, testLookback),
		},
	}
	pred := &fakePredictor{window: 5, predict: func(closes []float64) (float64, error) {
		if closes[len(closes)-1] == 100 {
			panic("model blew up")
		}
		return closes[len(closes)-1] + 1, nil
	}}
	o, _ := newTestOrchestrator(t, exch, pred, "BTCUSDT", "ETHUSDT")

	o.RunCycle(context.Background())

	orders := exch.placedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, "ETHUSDT", orders[0].Symbol)
	assert.Equal(t, StateFailed, o.States()["BTCUSDT"])
}

func TestCycleOverlapIsSkipped(t *testing.T) {
	gate := make(chan struct{})
	began := make(chan struct{}, 1)
	exch := &fakeExchange{
		balance:    10000,
		klines:     map[string][]types.OHLCV{"BTCUSDT": candles(100, testLookback)},
		fetchGate:  gate,
		fetchBegan: began,
	}
	pred := &fakePredictor{window: 5, predict: func(closes []float64) (float64, error) {
		return closes[len(closes)-1], nil
	}}
	o, _ := newTestOrchestrator(t, exch, pred, "BTCUSDT")

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.RunCycle(context.Background())
	}()
	<-began // first cycle is now mid-fetch

	// Second tick while the first cycle is in flight: must return without
	// syncing the balance or touching the exchange again.
	o.RunCycle(context.Background())
	exch.mu.Lock()
	syncs := exch.syncCalls
	exch.mu.Unlock()
	assert.Equal(t, 1, syncs)

	close(gate)
	<-done
}

func TestCycleInsufficientBalance(t *testing.T) {
	exch := &fakeExchange{
		balance: 0,
		klines:  map[string][]types.OHLCV{"BTCUSDT": candles(100, testLookback)},
	}
	pred := &fakePredictor{window: 5, predict: func(closes []float64) (float64, error) {
		return closes[len(closes)-1] + 1, nil
	}}
	o, _ := newTestOrchestrator(t, exch, pred, "BTCUSDT")

	o.RunCycle(context.Background())

	assert.Empty(t, exch.placedOrders())
	assert.Equal(t, StateFailed, o.States()["BTCUSDT"])
}

func TestTaskStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "protected", StateProtected.String())
	assert.Equal(t, "unknown", TaskState(99).String())
}
