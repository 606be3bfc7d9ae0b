// Package journal persists executed trades to an Excel workbook for offline
// review.
package journal

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/quantbay/forecast-bot/internal/executor"
)

const sheetName = "Trades"

var headers = []string{
	"Time (UTC)", "Symbol", "Side", "Order ID", "Quantity",
	"Entry Price", "Position Size", "Stop Loss", "Take Profit", "Protected",
}

// ExcelJournal appends each trade as a row in a workbook on disk. The file
// is created on first use and reopened per write so a crash never loses more
// than the in-flight row.
type ExcelJournal struct {
	mu     sync.Mutex
	path   string
	logger zerolog.Logger
}

func NewExcelJournal(path string, logger zerolog.Logger) *ExcelJournal {
	return &ExcelJournal{
		path:   path,
		logger: logger.With().Str("component", "journal").Logger(),
	}
}

// Record appends one trade row and saves the workbook.
func (j *ExcelJournal) Record(position *executor.Position) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := j.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return fmt.Errorf("failed to read journal sheet: %w", err)
	}
	row := len(rows) + 1

	values := []interface{}{
		position.OpenedAt.Format("2006-01-02 15:04:05"),
		position.Symbol,
		string(position.Side),
		position.OrderID,
		position.Quantity,
		position.EntryPrice,
		position.Size,
		position.Bracket.StopLoss,
		position.Bracket.TakeProfit,
		position.Protected,
	}
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, value); err != nil {
			return fmt.Errorf("failed to write journal cell %s: %w", cell, err)
		}
	}

	if err := f.SaveAs(j.path); err != nil {
		return fmt.Errorf("failed to save trade journal: %w", err)
	}

	j.logger.Debug().Str("symbol", position.Symbol).Int("row", row).Msg("trade journaled")
	return nil
}

func (j *ExcelJournal) open() (*excelize.File, error) {
	if _, err := os.Stat(j.path); err == nil {
		f, err := excelize.OpenFile(j.path)
		if err != nil {
			return nil, fmt.Errorf("failed to open trade journal: %w", err)
		}
		return f, nil
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, err
	}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}
