// Package strategy turns a price window and a forecast into a trade
// decision.
package strategy

import (
	"github.com/quantbay/forecast-bot/pkg/types"
)

// Decision represents the action derived from a forecast.
type Decision int

const (
	NoAction Decision = iota
	Buy
	Sell
)

func (d Decision) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	case NoAction:
		return "NO_ACTION"
	default:
		return "UNKNOWN"
	}
}

// Decide compares the predicted price against the most recent close: Buy
// when the forecast is above it, Sell when below, NoAction when equal or
// when the window is empty. The rule is deliberately threshold-free; it
// carries no confidence margin and no transaction-cost filter.
func Decide(window *types.PriceWindow, predicted float64) Decision {
	if window == nil || window.Len() == 0 {
		return NoAction
	}

	last := window.LastClose()
	switch {
	case predicted > last:
		return Buy
	case predicted < last:
		return Sell
	default:
		return NoAction
	}
}
