package strategy

import (
	"fmt"
	"math"
	"time"

	"spxbacktest/internal/domain"
)

const (
	// DaysPerYear converts calendar days to years for annualization.
	DaysPerYear = 365.25

	// TradingDaysPerYear annualizes the daily Sharpe ratio.
	TradingDaysPerYear = 252
)

// YearsBetween returns the whole calendar days from start to end divided by
// DaysPerYear. Ranges of zero or negative length are rejected.
func YearsBetween(start, end time.Time) (float64, error) {
	days := int64(domain.CivilDate(end).Sub(domain.CivilDate(start)) / (24 * time.Hour))
	if days <= 0 {
		return 0, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidDateRange,
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return float64(days) / DaysPerYear, nil
}

// AnnualizedReturn compounds the growth from initial to final over years.
func AnnualizedReturn(final, initial, years float64) (float64, error) {
	if !(initial > 0) || math.IsInf(initial, 0) {
		return 0, fmt.Errorf("%w: initial investment must be positive, got %v", ErrInvalidParameter, initial)
	}
	if !(years > 0) {
		return 0, fmt.Errorf("%w: %v years", ErrInvalidDateRange, years)
	}
	if !(final > 0) {
		return 0, fmt.Errorf("%w: final amount %v cannot be annualized", ErrInvalidSeries, final)
	}
	return math.Pow(final/initial, 1/years) - 1, nil
}

// DailyReturns returns the simple close-to-close returns of closes. The
// result has one fewer element than the input.
func DailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out[i-1] = closes[i]/closes[i-1] - 1
	}
	return out
}

// SharpeRatio returns the annualized Sharpe ratio of daily returns with a
// zero risk-free rate, using the sample standard deviation.
func SharpeRatio(returns []float64) (float64, error) {
	n := len(returns)
	if n < 2 {
		return 0, fmt.Errorf("%w: %d daily returns, need at least 2", ErrInsufficientData, n)
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(n)

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(n-1))
	if sd == 0 {
		return 0, fmt.Errorf("%w: daily returns have zero variance", ErrInsufficientData)
	}
	return mean / sd * math.Sqrt(TradingDaysPerYear), nil
}
