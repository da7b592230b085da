package strategy

import (
	"errors"
	"fmt"
	"math"

	"spxbacktest/internal/domain"
)

// Error taxonomy for a backtest run. Callers match with errors.Is; every
// returned error wraps exactly one of these. Errors from a PriceSource are
// returned as-is and do not wrap any of them.
var (
	// ErrInvalidParameter reports a bad strategy parameter or investment.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidDateRange reports an end date on or before the start date.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInsufficientData reports a series too short to trade or to measure.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidSeries reports malformed price data: unordered or duplicate
	// dates, or a close that is not a positive finite number.
	ErrInvalidSeries = errors.New("invalid price series")
)

// ValidateSeries checks that points are strictly ascending by date and that
// every close is positive and finite.
func ValidateSeries(points []domain.PricePoint) error {
	for i, p := range points {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			return fmt.Errorf("%w: close %v on %s", ErrInvalidSeries, p.Close, p.Date.Format("2006-01-02"))
		}
		if i > 0 && !points[i-1].Date.Before(p.Date) {
			return fmt.Errorf("%w: %s does not follow %s", ErrInvalidSeries,
				p.Date.Format("2006-01-02"), points[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}
