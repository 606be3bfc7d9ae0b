package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cycle metrics
	cyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecast_bot_cycles_total",
			Help: "Total number of analysis cycles started",
		},
	)

	cyclesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecast_bot_cycles_skipped_total",
			Help: "Cycles skipped because the previous cycle was still running",
		},
	)

	// Per-symbol outcome metrics
	symbolOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_bot_symbol_outcomes_total",
			Help: "Terminal outcome of each per-symbol analysis task",
		},
		[]string{"symbol", "outcome"},
	)

	// Account metrics
	freeBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forecast_bot_free_balance",
			Help: "Unreserved account balance at the last sync",
		},
	)

	reservedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forecast_bot_reserved_total",
			Help: "Balance reserved by positions opened this cycle",
		},
	)

	// Model metrics
	predictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecast_bot_prediction_seconds",
			Help:    "Latency of a single model inference",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"symbol"},
	)

	lastPredictedPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "forecast_bot_predicted_price",
			Help: "Most recent model prediction per symbol",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_bot_errors_total",
			Help: "Total number of errors by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(cyclesSkipped)
	prometheus.MustRegister(symbolOutcomes)
	prometheus.MustRegister(freeBalance)
	prometheus.MustRegister(reservedTotal)
	prometheus.MustRegister(predictionDuration)
	prometheus.MustRegister(lastPredictedPrice)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler serves the Prometheus metrics endpoint.
type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordCycleStart counts a cycle that actually began running.
func RecordCycleStart() {
	cyclesTotal.Inc()
}

// RecordCycleSkipped counts a tick dropped by the overlap guard.
func RecordCycleSkipped() {
	cyclesSkipped.Inc()
}

// RecordOutcome counts the terminal outcome of one symbol's analysis task.
func RecordOutcome(symbol, outcome string) {
	symbolOutcomes.WithLabelValues(symbol, outcome).Inc()
}

// UpdateFreeBalance publishes the unreserved balance after a sync.
func UpdateFreeBalance(balance float64) {
	freeBalance.Set(balance)
}

// UpdateReserved publishes the amount currently held by reservations.
func UpdateReserved(amount float64) {
	reservedTotal.Set(amount)
}

// RecordPrediction publishes one inference result and its latency.
func RecordPrediction(symbol string, predicted float64, seconds float64) {
	lastPredictedPrice.WithLabelValues(symbol).Set(predicted)
	predictionDuration.WithLabelValues(symbol).Observe(seconds)
}

// RecordError counts an error by category.
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
