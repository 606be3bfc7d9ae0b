package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderSideOpposite(t *testing.T) {
	assert.Equal(t, OrderSideSell, OrderSideBuy.Opposite())
	assert.Equal(t, OrderSideBuy, OrderSideSell.Opposite())
}

func TestOrderFillHelpers(t *testing.T) {
	o := &Order{AvgPrice: "50000.5", CumExecQty: "0.002"}
	assert.InDelta(t, 50000.5, o.FillPrice(), 1e-9)
	assert.InDelta(t, 0.002, o.FilledQty(), 1e-9)

	empty := &Order{}
	assert.Equal(t, 0.0, empty.FillPrice())
	assert.Equal(t, 0.0, empty.FilledQty())

	garbage := &Order{AvgPrice: "n/a", CumExecQty: "-"}
	assert.Equal(t, 0.0, garbage.FillPrice())
	assert.Equal(t, 0.0, garbage.FilledQty())
}

func TestExchangeErrorMessage(t *testing.T) {
	bare := &ExchangeError{Code: "X", Message: "request failed"}
	assert.Equal(t, "request failed", bare.Error())

	detailed := &ExchangeError{Code: "X", Message: "request failed", Details: "timeout"}
	assert.Equal(t, "request failed: timeout", detailed.Error())
}
