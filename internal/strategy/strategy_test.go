package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantbay/forecast-bot/pkg/types"
)

func windowWithLastClose(last float64) *types.PriceWindow {
	return &types.PriceWindow{
		Closes: []float64{99.0, 101.0, last},
		Highs:  []float64{100.0, 102.0, last + 1},
		Lows:   []float64{98.0, 100.0, last - 1},
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		lastClose float64
		predicted float64
		want      Decision
	}{
		{"forecast above last close", 100.0, 105.0, Buy},
		{"forecast below last close", 100.0, 95.0, Sell},
		{"forecast equals last close", 100.0, 100.0, NoAction},
		{"tiny positive edge", 100.0, 100.0001, Buy},
		{"tiny negative edge", 100.0, 99.9999, Sell},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(windowWithLastClose(tt.lastClose), tt.predicted)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecideEmptyWindow(t *testing.T) {
	assert.Equal(t, NoAction, Decide(&types.PriceWindow{}, 100.0))
	assert.Equal(t, NoAction, Decide(nil, 100.0))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "BUY", Buy.String())
	assert.Equal(t, "SELL", Sell.String())
	assert.Equal(t, "NO_ACTION", NoAction.String())
}
