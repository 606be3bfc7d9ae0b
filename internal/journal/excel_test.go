package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/quantbay/forecast-bot/internal/exchange"
	"github.com/quantbay/forecast-bot/internal/executor"
	"github.com/quantbay/forecast-bot/internal/risk"
)

func samplePosition(symbol string, protected bool) *executor.Position {
	return &executor.Position{
		Symbol:     symbol,
		Side:       exchange.OrderSideBuy,
		OrderID:    "order-1",
		Quantity:   0.5,
		EntryPrice: 100,
		Size:       50,
		Bracket:    risk.Bracket{StopLoss: 98, TakeProfit: 103},
		Protected:  protected,
		OpenedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecordCreatesWorkbookWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.xlsx")
	j := NewExcelJournal(path, zerolog.Nop())

	require.NoError(t, j.Record(samplePosition("BTCUSDT", true)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, headers[0], rows[0][0])
	assert.Equal(t, "BTCUSDT", rows[1][1])
	assert.Equal(t, "Buy", rows[1][2])
}

func TestRecordAppendsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.xlsx")
	j := NewExcelJournal(path, zerolog.Nop())

	require.NoError(t, j.Record(samplePosition("BTCUSDT", true)))
	require.NoError(t, j.Record(samplePosition("ETHUSDT", false)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ETHUSDT", rows[2][1])
	assert.Equal(t, "FALSE", rows[2][9])
}
