// Package predictor provides the forecasting collaborator: a black-box
// mapping from a recent close-price window to a predicted next price.
package predictor

import "context"

// Predictor produces a price forecast from the last K closes of a window.
// Implementations may be slow; callers pass a context and treat any error
// as a per-symbol skip.
type Predictor interface {
	// Predict maps a close-price window (most-recent last) to a predicted
	// next price.
	Predict(ctx context.Context, closes []float64) (float64, error)

	// WindowSize returns the number of closes the model expects.
	WindowSize() int

	Close() error
}
