// Package domain defines the core value types shared across spxbacktest:
// daily bars as stored and fetched, the close-price points the backtest
// consumes, and the strategy parameters that drive a run.
package domain

import (
	"sort"
	"time"
)

// Market identifies the market a symbol trades on. It selects the storage
// namespace for cached bars.
type Market string

const (
	MarketUS Market = "us"
)

// Side is the direction of a simulated trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Bar is one daily OHLCV record for a symbol.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// PricePoint is the (date, close) pair the backtest engine consumes. Date is
// a calendar day at UTC midnight.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// StrategyParams are the tunable inputs of the moving-average dip strategy.
type StrategyParams struct {
	MAPeriod    int     // moving average window in trading days
	BuyBelowPct float64 // buy when the prior close is this many percent below the SMA
}

// CivilDate truncates t to its calendar day in UTC.
func CivilDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ClosePoints projects bars onto their close prices, normalizing timestamps
// to calendar dates and sorting ascending. The input slice is not modified.
func ClosePoints(bars []Bar) []PricePoint {
	points := make([]PricePoint, len(bars))
	for i, b := range bars {
		points[i] = PricePoint{Date: CivilDate(b.Timestamp), Close: b.Close}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points
}

// Closes returns the close prices of points in order.
func Closes(points []PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Close
	}
	return out
}
