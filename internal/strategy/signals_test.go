package strategy

import (
	"encoding/json"
	"math"
	"testing"
)

func TestMovingAverageWarmUp(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}
	sma := MovingAverage(closes, 3)

	if len(sma) != len(closes) {
		t.Fatalf("MovingAverage returned %d values, want %d", len(sma), len(closes))
	}
	for i := 0; i < 2; i++ {
		if sma[i].Valid {
			t.Errorf("sma[%d] = %v, want undefined", i, sma[i].Value)
		}
	}
	want := []float64{2, 3, 4, 5}
	for i, w := range want {
		got := sma[i+2]
		if !got.Valid || math.Abs(got.Value-w) > 1e-12 {
			t.Errorf("sma[%d] = %+v, want %v", i+2, got, w)
		}
	}
}

func TestMovingAveragePeriodOne(t *testing.T) {
	closes := []float64{10, 20, 30}
	sma := MovingAverage(closes, 1)
	for i, c := range closes {
		if !sma[i].Valid || sma[i].Value != c {
			t.Errorf("sma[%d] = %+v, want %v", i, sma[i], c)
		}
	}
}

func TestMovingAverageShortSeries(t *testing.T) {
	sma := MovingAverage([]float64{1, 2}, 5)
	if len(sma) != 2 {
		t.Fatalf("MovingAverage returned %d values, want 2", len(sma))
	}
	for i, v := range sma {
		if v.Valid {
			t.Errorf("sma[%d] should be undefined when the window exceeds the series", i)
		}
	}
	if got := MovingAverage(nil, 3); len(got) != 0 {
		t.Errorf("MovingAverage(nil) returned %d values, want 0", len(got))
	}
}

func TestDipSignalsUsePreviousBar(t *testing.T) {
	closes := []float64{100, 100, 80, 120}
	sma := []Float{{}, Defined(100), Defined(90), Defined(100)}

	buy, sell := DipSignals(closes, sma, 5)

	if buy[0].Valid || sell[0].Valid {
		t.Error("index 0 has no previous bar and must be undefined")
	}
	if buy[1].Valid || sell[1].Valid {
		t.Error("index 1 follows an undefined average and must be undefined")
	}
	// close[1]=100 vs sma[1]=100: no dip, not above.
	if buy[2].True() || sell[2].True() {
		t.Errorf("index 2: buy=%+v sell=%+v, want both false", buy[2], sell[2])
	}
	// close[2]=80 vs sma[2]=90: 80 < 85.5 is a dip.
	if !buy[3].True() || sell[3].True() {
		t.Errorf("index 3: buy=%+v sell=%+v, want buy only", buy[3], sell[3])
	}
}

func TestDipSignalsZeroPct(t *testing.T) {
	closes := []float64{99, 101}
	sma := []Float{Defined(100), Defined(100)}
	buy, sell := DipSignals(closes, sma, 0)
	if !buy[1].True() {
		t.Error("with 0% threshold any close under the average should buy")
	}
	if sell[1].True() {
		t.Error("close under the average should not sell")
	}
}

func TestFloatMarshalJSON(t *testing.T) {
	data, err := json.Marshal([]Float{{}, Defined(1.5)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != "[null,1.5]" {
		t.Errorf("Marshal = %s, want [null,1.5]", data)
	}

	data, err = json.Marshal([]Bool{{}, {Value: true, Valid: true}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != "[null,true]" {
		t.Errorf("Marshal = %s, want [null,true]", data)
	}
}
