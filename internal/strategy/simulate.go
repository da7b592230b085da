package strategy

import (
	"fmt"
	"time"

	"spxbacktest/internal/domain"
)

// PositionState is the all-in/all-out accumulator threaded through the
// simulation. While InPosition the whole balance is held as Shares and Cash
// is zero; otherwise Shares is zero.
type PositionState struct {
	Cash       float64
	Shares     float64
	InPosition bool
}

// Trade records one simulated fill at a bar's close.
type Trade struct {
	Index  int
	Date   time.Time
	Side   domain.Side
	Price  float64
	Shares float64
	Value  float64
	Forced bool // end-of-series liquidation of an open position
}

// Outcome is the result of folding the signal series over the prices.
type Outcome struct {
	FinalAmount float64
	Exit        PositionState // state after the last bar, before liquidation
	Trades      []Trade
}

// Simulate replays signals over points in a single forward pass starting
// fully in cash. A buy is only acted on while out of the market and a sell
// only while in it; both execute at the same bar's close. A position still
// open after the last bar is marked to that bar's close.
func Simulate(points []domain.PricePoint, signals *SignalSeries, initial float64) (Outcome, error) {
	if len(points) == 0 {
		return Outcome{}, fmt.Errorf("%w: empty price series", ErrInsufficientData)
	}
	if signals == nil || signals.Len() != len(points) || len(signals.Buy) != len(points) || len(signals.Sell) != len(points) {
		return Outcome{}, fmt.Errorf("%w: signal series does not align with %d prices", ErrInvalidSeries, len(points))
	}

	state := PositionState{Cash: initial}
	var trades []Trade

	for i, p := range points {
		switch {
		case !state.InPosition && signals.Buy[i].True():
			state.Shares = state.Cash / p.Close
			trades = append(trades, Trade{
				Index: i, Date: p.Date, Side: domain.SideBuy,
				Price: p.Close, Shares: state.Shares, Value: state.Cash,
			})
			state.Cash = 0
			state.InPosition = true

		case state.InPosition && signals.Sell[i].True():
			state.Cash = state.Shares * p.Close
			trades = append(trades, Trade{
				Index: i, Date: p.Date, Side: domain.SideSell,
				Price: p.Close, Shares: state.Shares, Value: state.Cash,
			})
			state.Shares = 0
			state.InPosition = false
		}
	}

	out := Outcome{Exit: state, FinalAmount: state.Cash}
	if state.InPosition {
		last := len(points) - 1
		out.FinalAmount = state.Shares * points[last].Close
		trades = append(trades, Trade{
			Index: last, Date: points[last].Date, Side: domain.SideSell,
			Price: points[last].Close, Shares: state.Shares, Value: out.FinalAmount,
			Forced: true,
		})
	}
	out.Trades = trades
	return out, nil
}
