package types

// PriceWindow holds the recent price history for one symbol, most-recent
// candle last. A window is built fresh for each analysis pass and is owned
// exclusively by the task that fetched it.
type PriceWindow struct {
	Closes []float64
	Highs  []float64
	Lows   []float64
}

// NewPriceWindow extracts close/high/low series from candles, preserving
// their order.
func NewPriceWindow(candles []OHLCV) *PriceWindow {
	w := &PriceWindow{
		Closes: make([]float64, len(candles)),
		Highs:  make([]float64, len(candles)),
		Lows:   make([]float64, len(candles)),
	}
	for i, c := range candles {
		w.Closes[i] = c.Close
		w.Highs[i] = c.High
		w.Lows[i] = c.Low
	}
	return w
}

// Len returns the number of candles in the window.
func (w *PriceWindow) Len() int {
	return len(w.Closes)
}

// LastClose returns the most recent close price, or 0 for an empty window.
func (w *PriceWindow) LastClose() float64 {
	if len(w.Closes) == 0 {
		return 0
	}
	return w.Closes[len(w.Closes)-1]
}

// TailCloses returns the last k close prices. When the window holds fewer
// than k candles the whole close series is returned.
func (w *PriceWindow) TailCloses(k int) []float64 {
	if k <= 0 {
		return nil
	}
	if len(w.Closes) <= k {
		return w.Closes
	}
	return w.Closes[len(w.Closes)-k:]
}
