package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/quantbay/forecast-bot/internal/config"
	"github.com/quantbay/forecast-bot/internal/exchange"
	"github.com/quantbay/forecast-bot/internal/exchange/adapters"
	"github.com/quantbay/forecast-bot/internal/executor"
	"github.com/quantbay/forecast-bot/internal/journal"
	"github.com/quantbay/forecast-bot/internal/monitoring"
	"github.com/quantbay/forecast-bot/internal/notifications"
	"github.com/quantbay/forecast-bot/internal/orchestrator"
	"github.com/quantbay/forecast-bot/internal/predictor"
	"github.com/quantbay/forecast-bot/internal/risk"
	"github.com/quantbay/forecast-bot/pkg/types"
)

func main() {
	configPath := flag.String("config", "configs/bot.json", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to environment file")
	flag.Parse()

	// Credentials load from the environment file when present; a missing
	// file is fine in containerized deployments.
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load env file %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	if err := run(cfg, logger); err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("bot terminated")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := adapters.NewFactory(logger)
	if err := factory.ValidateConfig(cfg.Exchange); err != nil {
		return fmt.Errorf("invalid exchange configuration: %w", err)
	}
	exch, err := factory.CreateExchange(cfg.Exchange)
	if err != nil {
		return fmt.Errorf("failed to create exchange: %w", err)
	}
	if err := exch.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", exch.GetName(), err)
	}
	defer exch.Disconnect()

	pred, err := predictor.NewONNXPredictor(cfg.Model.Path, cfg.Model.WindowSize)
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", cfg.Model.Path, err)
	}
	defer pred.Close()

	health := monitoring.NewHealthChecker(3 * cfg.Trading.CycleInterval.Duration)
	health.SetConnected(exch.IsConnected())

	var notifier notifications.Notifier = notifications.NoopNotifier{}
	if cfg.Notifications.TelegramEnabled {
		notifier = notifications.NewTelegramNotifier(
			cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChatID)
	}

	var tradeJournal executor.TradeJournal
	if cfg.Journal.Enabled {
		tradeJournal = journal.NewExcelJournal(cfg.Journal.Path, logger)
	}

	riskMgr := risk.NewManager(cfg.Risk, exch, cfg.Trading.BalanceAsset, logger)
	alerter := &bracketAlerter{notifier: notifier, logger: logger}
	exec := executor.NewExecutor(exch, riskMgr, alerter, tradeJournal, logger)

	orch := orchestrator.NewOrchestrator(orchestrator.Config{
		Symbols:       cfg.Trading.Symbols,
		Interval:      cfg.Trading.CycleInterval.Duration,
		KlineInterval: cfg.Trading.KlineInterval,
		Lookback:      cfg.Trading.Lookback,
	}, exch, pred, riskMgr, exec, health, logger)

	printStartupTable(cfg, exch)

	var monitorSrv *http.Server
	if cfg.Monitoring.Enabled {
		monitorSrv = startMonitoringServer(cfg.Monitoring.Port, health, logger)
		defer shutdownMonitoringServer(monitorSrv, logger)
	}

	// Live candle stream feeds the health endpoint; analysis always works
	// from fetched history.
	for _, symbol := range cfg.Trading.Symbols {
		err := exch.SubscribeKlines(ctx, symbol, cfg.Trading.KlineInterval, func(candle types.OHLCV) {
			health.MarkCandle(candle.Close)
		})
		if err != nil {
			logger.Warn().Err(err).Str("symbol", symbol).Msg("candle stream unavailable")
		}
	}

	if cfg.Notifications.TelegramEnabled {
		if err := notifier.SendAlert(notifications.LevelInfo, "Forecast bot started"); err != nil {
			logger.Warn().Err(err).Msg("failed to send startup notification")
		}
	}

	err = orch.Run(ctx)
	logger.Info().Msg("shutting down")
	return err
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	if cfg.Pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func startMonitoringServer(port int, health *monitoring.HealthChecker, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	mux.Handle("/health", health)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("monitoring server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("monitoring server failed")
		}
	}()
	return srv
}

func shutdownMonitoringServer(srv *http.Server, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("monitoring server shutdown failed")
	}
}

func printStartupTable(cfg *config.Config, exch exchange.Exchange) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Setting", "Value"})
	t.AppendRows([]table.Row{
		{"Exchange", fmt.Sprintf("%s (%s)", exch.GetName(), exch.GetEnvironment())},
		{"Symbols", strings.Join(cfg.Trading.Symbols, ", ")},
		{"Cycle Interval", cfg.Trading.CycleInterval.String()},
		{"Kline Interval", cfg.Trading.KlineInterval},
		{"Lookback", cfg.Trading.Lookback},
		{"Model", cfg.Model.Path},
		{"Model Window", cfg.Model.WindowSize},
		{"Risk Fraction", fmt.Sprintf("%.4f", cfg.Risk.RiskFraction)},
		{"Stop Loss Mult", fmt.Sprintf("%.2f", cfg.Risk.StopLossMultiplier)},
		{"Take Profit Mult", fmt.Sprintf("%.2f", cfg.Risk.TakeProfitMultiplier)},
	})
	t.Render()
}

// bracketAlerter surfaces unprotected positions to the operator channel.
type bracketAlerter struct {
	notifier notifications.Notifier
	logger   zerolog.Logger
}

func (a *bracketAlerter) AlertUnprotected(ctx context.Context, position *executor.Position, cause error) {
	message := fmt.Sprintf(
		"Position %s %s (qty %.8f @ %.4f) is OPEN WITHOUT a protective bracket.\nCause: %v\nManual intervention required.",
		position.Side, position.Symbol, position.Quantity, position.EntryPrice, cause)
	if err := a.notifier.SendAlert(notifications.LevelCritical, message); err != nil {
		a.logger.Error().Err(err).Str("symbol", position.Symbol).Msg("failed to deliver critical alert")
	}
}
