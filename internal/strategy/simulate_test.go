package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"spxbacktest/internal/domain"
)

// makePoints dates closes on consecutive calendar days from 2020-01-01.
func makePoints(closes ...float64) []domain.PricePoint {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Close: c}
	}
	return points
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func dipSeries(closes []float64, period int, pct float64) *SignalSeries {
	sma := MovingAverage(closes, period)
	buy, sell := DipSignals(closes, sma, pct)
	return &SignalSeries{SMA: sma, Buy: buy, Sell: sell}
}

func TestSimulateEmpty(t *testing.T) {
	_, err := Simulate(nil, &SignalSeries{}, 10000)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Simulate(empty) error = %v, want ErrInsufficientData", err)
	}
}

func TestSimulateMisalignedSignals(t *testing.T) {
	points := makePoints(1, 2, 3)
	_, err := Simulate(points, dipSeries([]float64{1, 2}, 1, 0), 10000)
	if !errors.Is(err, ErrInvalidSeries) {
		t.Errorf("Simulate(misaligned) error = %v, want ErrInvalidSeries", err)
	}
}

func TestSimulateConstantNeverTrades(t *testing.T) {
	closes := repeat(100, 30)
	out, err := Simulate(makePoints(closes...), dipSeries(closes, 5, 5), 10000)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if out.FinalAmount != 10000 {
		t.Errorf("FinalAmount = %v, want 10000", out.FinalAmount)
	}
	if len(out.Trades) != 0 {
		t.Errorf("got %d trades on a constant series, want 0", len(out.Trades))
	}
}

func TestSimulateDipHeldToEnd(t *testing.T) {
	closes := append(repeat(100, 50), 90, 90, 95, 95, 95)
	out, err := Simulate(makePoints(closes...), dipSeries(closes, 50, 5), 10000)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	if len(out.Trades) != 2 {
		t.Fatalf("got %d trades, want buy plus forced liquidation: %+v", len(out.Trades), out.Trades)
	}
	buy := out.Trades[0]
	// The dip closes on day 50; the signal acts one bar later at that bar's close.
	if buy.Side != domain.SideBuy || buy.Index != 51 || buy.Price != 90 {
		t.Errorf("first trade = %+v, want buy at index 51 price 90", buy)
	}
	wantShares := 10000.0 / 90
	if math.Abs(buy.Shares-wantShares) > 1e-9 {
		t.Errorf("bought %v shares, want %v", buy.Shares, wantShares)
	}

	last := out.Trades[1]
	if !last.Forced || last.Side != domain.SideSell || last.Index != len(closes)-1 {
		t.Errorf("last trade = %+v, want forced sell on the final bar", last)
	}
	if !out.Exit.InPosition || out.Exit.Cash != 0 {
		t.Errorf("Exit = %+v, want open position with no cash", out.Exit)
	}

	want := wantShares * 95
	if math.Abs(out.FinalAmount-want) > 1e-9 {
		t.Errorf("FinalAmount = %v, want %v", out.FinalAmount, want)
	}
}

func TestSimulateRoundTrip(t *testing.T) {
	// sma[52] = 99.8, so the 110 close on day 52 sells at day 53's close.
	closes := append(repeat(100, 50), 90, 90, 110, 110)
	out, err := Simulate(makePoints(closes...), dipSeries(closes, 50, 5), 10000)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	if len(out.Trades) != 2 {
		t.Fatalf("got %d trades, want 2: %+v", len(out.Trades), out.Trades)
	}
	sell := out.Trades[1]
	if sell.Side != domain.SideSell || sell.Forced || sell.Index != 53 {
		t.Errorf("second trade = %+v, want signal sell at index 53", sell)
	}
	if out.Exit.InPosition || out.Exit.Shares != 0 {
		t.Errorf("Exit = %+v, want flat", out.Exit)
	}
	want := 10000.0 / 90 * 110
	if math.Abs(out.FinalAmount-want) > 1e-9 {
		t.Errorf("FinalAmount = %v, want %v", out.FinalAmount, want)
	}
}

func TestSimulateIgnoresBuyWhileInvested(t *testing.T) {
	closes := []float64{10, 10, 10, 10}
	sig := &SignalSeries{
		SMA:  make([]Float, 4),
		Buy:  []Bool{{}, {Value: true, Valid: true}, {Value: true, Valid: true}, {Value: true, Valid: true}},
		Sell: make([]Bool, 4),
	}
	out, err := Simulate(makePoints(closes...), sig, 100)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	// One buy, then a forced liquidation; repeated buy signals are no-ops.
	if len(out.Trades) != 2 || out.Trades[0].Index != 1 {
		t.Errorf("trades = %+v, want a single buy at index 1 then liquidation", out.Trades)
	}
}
