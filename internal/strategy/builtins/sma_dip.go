// Package builtins provides the strategy implementations that ship with
// spxbacktest.
package builtins

import (
	"fmt"
	"math"

	"spxbacktest/internal/domain"
	"spxbacktest/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMADip)(nil)

// SMADip buys after a close more than BuyBelowPct percent below its simple
// moving average and sells after a close above it.
type SMADip struct {
	period      int
	buyBelowPct float64
}

// NewSMADip creates an SMADip strategy from params.
func NewSMADip(params domain.StrategyParams) (*SMADip, error) {
	if params.MAPeriod < 1 {
		return nil, fmt.Errorf("%w: moving average period must be at least 1, got %d",
			strategy.ErrInvalidParameter, params.MAPeriod)
	}
	if math.IsNaN(params.BuyBelowPct) || math.IsInf(params.BuyBelowPct, 0) || params.BuyBelowPct < 0 {
		return nil, fmt.Errorf("%w: buy-below percentage must be non-negative, got %v",
			strategy.ErrInvalidParameter, params.BuyBelowPct)
	}
	return &SMADip{
		period:      params.MAPeriod,
		buyBelowPct: params.BuyBelowPct,
	}, nil
}

// New is the strategy.Factory for SMADip.
func New(params domain.StrategyParams) (strategy.Strategy, error) {
	s, err := NewSMADip(params)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Register adds every built-in strategy to r.
func Register(r *strategy.Registry) {
	r.Register(strategy.DefaultStrategy, New)
}

// Name returns "sma-dip".
func (s *SMADip) Name() string {
	return strategy.DefaultStrategy
}

// WarmUp returns the moving average period: the first signal needs a full
// window ending on the previous bar.
func (s *SMADip) WarmUp() int {
	return s.period
}

// Signals computes the SMA and the dip-buy / above-average-sell series.
func (s *SMADip) Signals(closes []float64) *strategy.SignalSeries {
	sma := strategy.MovingAverage(closes, s.period)
	buy, sell := strategy.DipSignals(closes, sma, s.buyBelowPct)
	return &strategy.SignalSeries{SMA: sma, Buy: buy, Sell: sell}
}
