package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker tracks liveness signals from the trading loop and serves
// them as a JSON health endpoint.
type HealthChecker struct {
	mu            sync.RWMutex
	lastCycle     time.Time
	lastCandle    time.Time
	lastPrice     float64
	isConnected   bool
	unprotected   int
	staleInterval time.Duration
}

type HealthStatus struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	LastCycle    time.Time `json:"last_cycle"`
	LastCandle   time.Time `json:"last_candle"`
	LastPrice    float64   `json:"last_price"`
	IsConnected  bool      `json:"is_connected"`
	Unprotected  int       `json:"unprotected_positions"`
	Uptime       string    `json:"uptime"`
}

// NewHealthChecker creates a checker that reports degraded when no cycle has
// completed within staleInterval.
func NewHealthChecker(staleInterval time.Duration) *HealthChecker {
	return &HealthChecker{staleInterval: staleInterval}
}

// MarkCycle records a completed analysis cycle.
func (h *HealthChecker) MarkCycle() {
	h.mu.Lock()
	h.lastCycle = time.Now()
	h.mu.Unlock()
}

// MarkCandle records a live candle update from the market data stream.
func (h *HealthChecker) MarkCandle(closePrice float64) {
	h.mu.Lock()
	h.lastCandle = time.Now()
	h.lastPrice = closePrice
	h.mu.Unlock()
}

// SetConnected records the exchange connection state.
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	h.isConnected = connected
	h.mu.Unlock()
}

// MarkUnprotected counts a position left without a protective bracket.
// The count only resets with the process; an operator has to act on it.
func (h *HealthChecker) MarkUnprotected() {
	h.mu.Lock()
	h.unprotected++
	h.mu.Unlock()
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.isConnected || (h.staleInterval > 0 && time.Since(h.lastCycle) > h.staleInterval) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if h.unprotected > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:      status,
		Timestamp:   time.Now(),
		LastCycle:   h.lastCycle,
		LastCandle:  h.lastCandle,
		LastPrice:   h.lastPrice,
		IsConnected: h.isConnected,
		Unprotected: h.unprotected,
		Uptime:      time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
