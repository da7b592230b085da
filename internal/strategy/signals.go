package strategy

import (
	"encoding/json"

	talib "github.com/markcheno/go-talib"
)

// Float is a float64 that may be undefined, such as a moving average inside
// its warm-up window.
type Float struct {
	Value float64
	Valid bool
}

// Defined wraps v as a valid Float.
func Defined(v float64) Float {
	return Float{Value: v, Valid: true}
}

// MarshalJSON encodes an undefined Float as null.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Bool is a boolean signal that may be undefined.
type Bool struct {
	Value bool
	Valid bool
}

// True reports whether the signal is defined and set. Undefined signals are
// never actionable.
func (b Bool) True() bool {
	return b.Valid && b.Value
}

// MarshalJSON encodes an undefined Bool as null.
func (b Bool) MarshalJSON() ([]byte, error) {
	if !b.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(b.Value)
}

// SignalSeries holds the indicator and signal values aligned by index with
// the price series they were derived from.
type SignalSeries struct {
	SMA  []Float
	Buy  []Bool
	Sell []Bool
}

// Len returns the number of indices covered by the series.
func (s *SignalSeries) Len() int {
	return len(s.SMA)
}

// MovingAverage returns the trailing simple moving average of closes over a
// full window of period values. Indices before period-1 are undefined.
func MovingAverage(closes []float64, period int) []Float {
	out := make([]Float, len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}
	raw := talib.Sma(closes, period)
	for i := period - 1; i < len(closes); i++ {
		out[i] = Defined(raw[i])
	}
	return out
}

// DipSignals derives buy and sell signals from the previous index's close
// and moving average. Buy fires when the prior close sat more than
// buyBelowPct percent under its average; sell fires when it sat above.
// Index 0 and any index whose prior average is undefined stay undefined.
func DipSignals(closes []float64, sma []Float, buyBelowPct float64) (buy, sell []Bool) {
	buy = make([]Bool, len(closes))
	sell = make([]Bool, len(closes))
	factor := 1 - buyBelowPct/100
	for i := 1; i < len(closes) && i < len(sma); i++ {
		prev := sma[i-1]
		if !prev.Valid {
			continue
		}
		buy[i] = Bool{Value: closes[i-1] < prev.Value*factor, Valid: true}
		sell[i] = Bool{Value: closes[i-1] > prev.Value, Valid: true}
	}
	return buy, sell
}
